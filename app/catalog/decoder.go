package catalog

import (
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrMalformedQuizData = errors.New("quiz options cannot be decoded")

// DecodeQuiz turns the raw quiz columns of an item row into a validated
// Quiz. The options column is duck-typed at the source: sometimes a JSON
// array, sometimes a JSON string containing a serialized array, sometimes
// empty. A malformed encoding yields ErrMalformedQuizData and the item is
// treated as having no quiz; it never fails the whole fetch.
func DecodeQuiz(prompt, rawOptions string, correctIndex int) (*Quiz, error) {
	prompt = strings.TrimSpace(prompt)
	rawOptions = strings.TrimSpace(rawOptions)

	if prompt == "" && rawOptions == "" {
		// No quiz at all, not an error.
		return nil, nil
	}

	options, err := decodeOptions(rawOptions)
	if err != nil {
		return nil, err
	}

	if prompt == "" || len(options) < 2 {
		return nil, ErrMalformedQuizData
	}
	if correctIndex < 0 || correctIndex >= len(options) {
		return nil, ErrMalformedQuizData
	}

	quiz := &Quiz{
		Prompt:       norm.NFC.String(prompt),
		Options:      make([]string, 0, len(options)),
		CorrectIndex: correctIndex,
	}
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return nil, ErrMalformedQuizData
		}
		quiz.Options = append(quiz.Options, norm.NFC.String(opt))
	}

	return quiz, nil
}

func decodeOptions(raw string) ([]string, error) {
	if raw == "" {
		return nil, ErrMalformedQuizData
	}

	var options []string
	if err := json.Unmarshal([]byte(raw), &options); err == nil {
		return options, nil
	}

	// Legacy rows carry a JSON string whose content is itself a serialized
	// array, e.g. "\"[\\\"a\\\",\\\"b\\\"]\"".
	var inner string
	if err := json.Unmarshal([]byte(raw), &inner); err == nil {
		if err := json.Unmarshal([]byte(inner), &options); err == nil {
			return options, nil
		}
	}

	return nil, ErrMalformedQuizData
}

// EncodeOptions produces the canonical stored form of quiz options.
func EncodeOptions(options []string) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
