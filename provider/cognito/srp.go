package cognito

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// 3072-bit group from RFC 5054, as used by the user pool SRP flow.
const srpPrimeHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AAAC42DAD33170D04507A33A85521ABDF1CBA64" +
	"ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
	"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6B" +
	"F12FFA06D98A0864D87602733EC86A64521F2B18177B200C" +
	"BBE117577A615D6C770988C0BAD946E208E24FA074E5AB31" +
	"43DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

const (
	srpInfo          = "Caldera Derived Key"
	srpTimestampFmt  = "Mon Jan 2 15:04:05 UTC 2006"
	srpPrivateKeyLen = 128
)

var (
	errSRPInvalidPublicKey = errors.New("srp: invalid public value")
	errSRPInvalidInput     = errors.New("srp: malformed challenge parameters")
)

type srpGroup struct {
	n *big.Int
	g *big.Int
	k *big.Int
}

var group = newSRPGroup()

func newSRPGroup() srpGroup {
	n, _ := new(big.Int).SetString(srpPrimeHex, 16)
	g := big.NewInt(2)
	k := hexToBig(hashHex(padHex(n) + padHex(g)))
	return srpGroup{n: n, g: g, k: k}
}

// srpStart returns a fresh private value a and the public value A = g^a.
func srpStart(random io.Reader) (a, A *big.Int, err error) {
	if random == nil {
		random = rand.Reader
	}
	buf := make([]byte, srpPrivateKeyLen)
	for {
		if _, err := io.ReadFull(random, buf); err != nil {
			return nil, nil, fmt.Errorf("srp: read random: %w", err)
		}
		a = new(big.Int).SetBytes(buf)
		a.Mod(a, group.n)
		if a.Sign() == 0 {
			continue
		}
		A = new(big.Int).Exp(group.g, a, group.n)
		if A.Sign() != 0 {
			return a, A, nil
		}
	}
}

// srpClaim is the PASSWORD_VERIFIER answer.
type srpClaim struct {
	SecretBlock string
	Signature   string
	Timestamp   string
}

type srpClaimInput struct {
	PoolID       string
	UserIDForSRP string
	Password     string
	PrivateA     *big.Int
	PublicA      *big.Int
	SaltHex      string
	ServerBHex   string
	SecretBlock  string
	Now          time.Time
}

// srpPasswordClaim computes the signature proving knowledge of the password
// without sending it.
func srpPasswordClaim(in srpClaimInput) (srpClaim, error) {
	if in.PrivateA == nil || in.PublicA == nil || in.SaltHex == "" || in.ServerBHex == "" || in.SecretBlock == "" {
		return srpClaim{}, errSRPInvalidInput
	}
	B, ok := new(big.Int).SetString(in.ServerBHex, 16)
	if !ok || new(big.Int).Mod(B, group.n).Sign() == 0 {
		return srpClaim{}, errSRPInvalidPublicKey
	}
	salt, ok := new(big.Int).SetString(in.SaltHex, 16)
	if !ok {
		return srpClaim{}, errSRPInvalidInput
	}
	secretBlock, err := base64.StdEncoding.DecodeString(in.SecretBlock)
	if err != nil {
		return srpClaim{}, fmt.Errorf("%w: secret block", errSRPInvalidInput)
	}

	poolName := poolNameOf(in.PoolID)
	key, err := srpSessionKey(in.PrivateA, in.PublicA, B, salt, poolName, in.UserIDForSRP, in.Password)
	if err != nil {
		return srpClaim{}, err
	}

	timestamp := in.Now.UTC().Format(srpTimestampFmt)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(poolName))
	mac.Write([]byte(in.UserIDForSRP))
	mac.Write(secretBlock)
	mac.Write([]byte(timestamp))

	return srpClaim{
		SecretBlock: in.SecretBlock,
		Signature:   base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		Timestamp:   timestamp,
	}, nil
}

func srpSessionKey(a, A, B, salt *big.Int, poolName, userID, password string) ([]byte, error) {
	u := hexToBig(hashHex(padHex(A) + padHex(B)))
	if u.Sign() == 0 {
		return nil, errSRPInvalidPublicKey
	}
	x := hexToBig(hashHex(padHex(salt) + hashString(poolName+userID+":"+password)))

	gx := new(big.Int).Exp(group.g, x, group.n)
	kgx := new(big.Int).Mul(group.k, gx)
	base := new(big.Int).Sub(B, kgx)
	base.Mod(base, group.n)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)

	S := new(big.Int).Exp(base, exp, group.n)
	return deriveKey(S, u)
}

func deriveKey(S, u *big.Int) ([]byte, error) {
	ikm, _ := hex.DecodeString(padHex(S))
	salt, _ := hex.DecodeString(padHex(u))
	key := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte(srpInfo)), key); err != nil {
		return nil, fmt.Errorf("srp: derive key: %w", err)
	}
	return key, nil
}

// poolNameOf returns the part of a pool id after the region prefix,
// e.g. "abc123" for "us-east-1_abc123".
func poolNameOf(poolID string) string {
	if _, name, ok := strings.Cut(poolID, "_"); ok {
		return name
	}
	return poolID
}

// padHex encodes n as even-length hex with a leading zero byte when the high
// bit is set, so that it is read back as positive.
func padHex(n *big.Int) string {
	h := n.Text(16)
	if len(h)%2 == 1 {
		return "0" + h
	}
	if strings.ContainsRune("89abcdef", rune(h[0])) {
		return "00" + h
	}
	return h
}

func hexToBig(h string) *big.Int {
	n, _ := new(big.Int).SetString(h, 16)
	if n == nil {
		return new(big.Int)
	}
	return n
}

func hashHex(h string) string {
	b, _ := hex.DecodeString(h)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// secretHash is the app client secret proof sent with user pool requests.
func secretHash(username, clientID, clientSecret string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
