package driven

// ValueSealer encrypts form values before they reach storage
type ValueSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}
