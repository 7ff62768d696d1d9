package remittance

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/text/unicode/norm"
	"lukechampine.com/blake3"

	"github.com/0surface/Remittance/crypto"
)

// Generator derives claim keys for one deployment. The contract address is
// mixed into every preimage as a domain separator, so the same password and
// recipient produce unrelated keys on different deployments.
type Generator struct {
	domain [20]byte
	hash   HashKind
	scheme Scheme
}

func NewGenerator(params Params) *Generator {
	return &Generator{domain: params.Contract, hash: params.Hash, scheme: params.Scheme}
}

func (g *Generator) sum(parts ...[]byte) [32]byte {
	var out [32]byte
	switch g.hash {
	case HashBlake3:
		size := 0
		for _, p := range parts {
			size += len(p)
		}
		buf := make([]byte, 0, size)
		for _, p := range parts {
			buf = append(buf, p...)
		}
		out = blake3.Sum256(buf)
	default:
		copy(out[:], ethcrypto.Keccak256(parts...))
	}
	return out
}

// normalizePassword fixes the byte encoding of a password: Unicode NFC,
// encoded as UTF-8.
func normalizePassword(password string) []byte {
	return []byte(norm.NFC.String(password))
}

// GenerateKey returns H(domain ‖ password ‖ recipient). Every field but the
// password is fixed width, so the concatenation is unambiguous.
func (g *Generator) GenerateKey(recipient [20]byte, password string) ([32]byte, error) {
	if recipient == ([20]byte{}) {
		return [32]byte{}, ErrZeroRecipient
	}
	if password == "" {
		return [32]byte{}, ErrEmptyPassword
	}
	return g.sum(g.domain[:], normalizePassword(password), recipient[:]), nil
}

// GenerateSecret derives the handler scheme pair:
//
//	handlerKey   = H(domain ‖ handler ‖ handlerPassword)
//	hashedSecret = H(handlerKey ‖ receiverPassword)
func (g *Generator) GenerateSecret(handler [20]byte, handlerPassword, receiverPassword string) (Secret, error) {
	if handler == ([20]byte{}) {
		return Secret{}, ErrZeroRecipient
	}
	if handlerPassword == "" {
		return Secret{}, ErrEmptyHandlerPassword
	}
	if receiverPassword == "" {
		return Secret{}, ErrEmptyPassword
	}
	hpw := normalizePassword(handlerPassword)
	rpw := normalizePassword(receiverPassword)
	if string(hpw) == string(rpw) {
		return Secret{}, ErrIdenticalPasswords
	}
	if crypto.LooksLikeAddress(handlerPassword) || crypto.LooksLikeAddress(receiverPassword) {
		return Secret{}, ErrPasswordIsAddress
	}
	handlerKey := g.sum(g.domain[:], handler[:], hpw)
	return Secret{
		HandlerKey:   handlerKey,
		HashedSecret: g.sum(handlerKey[:], rpw),
	}, nil
}

// ClaimKey recomputes the ledger key a claimant is entitled to from the
// passwords they present. The number of passwords must match the scheme.
func (g *Generator) ClaimKey(claimant [20]byte, passwords ...string) ([32]byte, error) {
	if len(passwords) != g.scheme.Arity() {
		return [32]byte{}, ErrPasswordArity
	}
	if g.scheme == SchemeHandler {
		secret, err := g.GenerateSecret(claimant, passwords[0], passwords[1])
		if err != nil {
			return [32]byte{}, err
		}
		return secret.HashedSecret, nil
	}
	return g.GenerateKey(claimant, passwords[0])
}
