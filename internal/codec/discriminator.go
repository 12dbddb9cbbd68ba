package codec

import "crypto/sha256"

// Discriminators follow the program's published interface description: the
// first 8 bytes of sha256 over a namespaced name. Events use the "event"
// namespace, account layouts the "account" namespace.

// EventDiscriminator returns the 8-byte discriminator for an event name.
func EventDiscriminator(name string) [8]byte {
	return discriminator("event:" + name)
}

// AccountDiscriminator returns the 8-byte discriminator for an account
// layout name.
func AccountDiscriminator(name string) [8]byte {
	return discriminator("account:" + name)
}

func discriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
