package port

// Tokenizer maps raw text to normalized tokens. The same instance must be used
// for corpus documents and queries.
type Tokenizer interface {
	Tokenize(text string) []string
}
