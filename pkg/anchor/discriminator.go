package anchor

import "crypto/sha256"

// DiscriminatorSize is the length of the prefix Anchor writes before
// instruction data and account state.
const DiscriminatorSize = 8

// InstructionDiscriminator returns sha256("global:<snake_name>")[:8].
func InstructionDiscriminator(name string) []byte {
	return sighash("global", Normalize(name))
}

// AccountDiscriminator returns sha256("account:<Name>")[:8]. Account names
// are hashed as written in the IDL, which is PascalCase.
func AccountDiscriminator(name string) []byte {
	return sighash("account", name)
}

func sighash(namespace, name string) []byte {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	return h[:DiscriminatorSize]
}
