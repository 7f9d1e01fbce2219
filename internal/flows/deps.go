package flows

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation. Session dependencies
// are generic over the user type and are built per call by the engine.
type Deps struct {
	Issue    IssueDeps
	Bind     BindDeps
	MailCode MailCodeDeps
	Binding  BindingDeps
	Verify   VerifyDeps
}
