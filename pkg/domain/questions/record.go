// Package questions defines the question/explanation records produced from a
// model reply and the parser that extracts them.
package questions

// Record is one generated question and the reason it is worth asking.
type Record struct {
	Question    string `json:"question" yaml:"question"`
	Explanation string `json:"explanation" yaml:"explanation"`
}
