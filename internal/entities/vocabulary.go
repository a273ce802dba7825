package entities

// LookupRecord is a single Kindle dictionary lookup: the word the reader
// tapped and the sentence it appeared in.
type LookupRecord struct {
	Word      string `json:"word"`
	Usage     string `json:"usage"`
	Timestamp int64  `json:"timestamp"` // Epoch milliseconds
}

// DefinitionResult is what the dictionary knows about a word.
// Empty Pronunciation or Definition means "no data", not an error.
type DefinitionResult struct {
	Headword      string `json:"headword"`
	Pronunciation string `json:"pronunciation"`
	Definition    string `json:"definition"`
	SourceWord    string `json:"source_word"`
}

// ExportRecord is one row of the Anki import file.
type ExportRecord struct {
	Headword      string `json:"headword"`
	Pronunciation string `json:"pronunciation"`
	Usage         string `json:"usage"` // Usage sentence with the word in <b></b>
	Definition    string `json:"definition"`
}

// Fields returns the record in output column order.
func (r ExportRecord) Fields() []string {
	return []string{r.Headword, r.Pronunciation, r.Usage, r.Definition}
}
