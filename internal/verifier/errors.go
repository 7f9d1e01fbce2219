package verifier

import "errors"

var (
	ErrDecode           = errors.New("envelope decode failed")
	ErrKeyUnwrap        = errors.New("symmetric key unwrap failed")
	ErrPayloadDecrypt   = errors.New("payload decrypt failed")
	ErrIncompleteClaim  = errors.New("claim is incomplete")
	ErrHashMismatch     = errors.New("hash verification failed")
	ErrPrivateKeyFormat = errors.New("invalid private key")
	ErrPublicKeyFormat  = errors.New("invalid public key")
)
