package zk

import (
	"bytes"
	"errors"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// EnsureShotKeys makes sure proving/verifying keys exist in dir,
// regenerating them when either file is missing or unparsable.
func EnsureShotKeys(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	vkPath := filepath.Join(dir, "shot.vk")
	pkPath := filepath.Join(dir, "shot.pk")

	if vk, pk, err := readKeys(vkPath, pkPath); err == nil && vk != nil && pk != nil {
		return nil
	}

	var circuit ShotCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return err
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return err
	}

	if err := writeVK(vkPath, vk); err != nil {
		return err
	}
	return writePK(pkPath, pk)
}

// ProveShot produces a serialized groth16 proof that the board committed to
// root holds bit at (x, y). The cell salt and sibling path stay secret.
func ProveShot(keysDir string, bit, x, y uint8, salt *big.Int, path []*big.Int, root *big.Int) ([]byte, error) {
	if len(path) != MerkleDepth {
		return nil, errors.New("bad path length")
	}
	if salt == nil || root == nil {
		return nil, errors.New("salt and root required")
	}

	var assign ShotCircuit
	assign.Bit = bit
	assign.Salt = salt
	for i := 0; i < MerkleDepth; i++ {
		assign.Path[i] = path[i]
	}
	assign.Root = root
	assign.X = x
	assign.Y = y
	assign.Hit = bit

	var circuit ShotCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, err
	}
	pk, err := readPK(filepath.Join(keysDir, "shot.pk"))
	if err != nil {
		return nil, err
	}

	fullWit, err := frontend.NewWitness(&assign, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	proof, err := groth16.Prove(cs, pk, fullWit)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Verifier checks shot proofs against a verifying key on disk. It satisfies
// the protocol engine's ShotVerifier.
type Verifier struct {
	VKPath string
}

func NewVerifier(keysDir string) *Verifier {
	return &Verifier{VKPath: filepath.Join(keysDir, "shot.vk")}
}

func (v *Verifier) VerifyShot(root *big.Int, x, y, hit uint8, proofBin []byte) (bool, error) {
	if root == nil {
		return false, errors.New("root required")
	}

	var pubAssign ShotCircuit
	pubAssign.Root = root
	pubAssign.X = x
	pubAssign.Y = y
	pubAssign.Hit = hit

	pubWit, err := frontend.NewWitness(&pubAssign, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, err
	}

	vk, err := readVK(v.VKPath)
	if err != nil {
		return false, err
	}
	pr := groth16.NewProof(ecc.BN254)
	if _, err := pr.ReadFrom(bytes.NewReader(proofBin)); err != nil {
		return false, err
	}

	if err := groth16.Verify(pr, vk, pubWit); err != nil {
		return false, nil
	}
	return true, nil
}

// --- key IO helpers using io.WriterTo / io.ReaderFrom ---

func writeVK(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

func writePK(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

func readVK(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

func readPK(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func readKeys(vkPath, pkPath string) (groth16.VerifyingKey, groth16.ProvingKey, error) {
	vk, err := readVK(vkPath)
	if err != nil {
		return nil, nil, err
	}
	pk, err := readPK(pkPath)
	if err != nil {
		return nil, nil, err
	}
	return vk, pk, nil
}
