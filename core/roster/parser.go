package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Document names
const (
	ClassesDocument = "classes"
	MembersDocument = "members"
)

type (
	// ClassRecord is one entry of the classes document.
	ClassRecord struct {
		Code  string    `json:"code"`
		Name  string    `json:"name"`
		Class ClassInfo `json:"class"`
	}

	ClassInfo struct {
		ClassCode string `json:"classCode"`
		Semester  string `json:"semester"`
		Time      string `json:"time"`
	}

	// MemberGroup is one entry of the members document: the people of one class.
	MemberGroup struct {
		Code      string          `json:"code"`
		ClassCode string          `json:"classCode"`
		Semester  string          `json:"semester"`
		Students  []StudentRecord `json:"dicente"`
		Professor *StudentRecord  `json:"docente"`
	}

	// StudentRecord describes one person of a MemberGroup.
	StudentRecord struct {
		Name           string `json:"nome"`
		RegistrationID string `json:"matricula"`
		Username       string `json:"usuario"`
		Email          string `json:"email"`
		Program        string `json:"curso"`
		Occupation     string `json:"ocupacao"`
		Degree         string `json:"formacao"`
		Department     string `json:"departamento"`

		fault string
	}

	// Documents holds both decoded import payloads.
	Documents struct {
		Classes []ClassRecord
		Members []MemberGroup
	}
)

// MalformedInputError is returned when an import document cannot be decoded.
type MalformedInputError struct {
	Document string
	Err      error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("invalid %s document: %v", e.Document, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// IsMalformedInput reports whether the root cause of err is a *MalformedInputError.
func IsMalformedInput(err error) bool {
	_, ok := errors.Cause(err).(*MalformedInputError)
	return ok
}

// UnmarshalJSON reads every text field given as a string or a number.
// A field of any other type, or an entry that is not an object, does not fail the document:
// the record keeps its first fault and is rejected on its own when imported.
func (r *StudentRecord) UnmarshalJSON(data []byte) error {
	*r = StudentRecord{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		r.fault = "record must be an object"
		return nil
	}
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"nome", &r.Name},
		{"matricula", &r.RegistrationID},
		{"usuario", &r.Username},
		{"email", &r.Email},
		{"curso", &r.Program},
		{"ocupacao", &r.Occupation},
		{"formacao", &r.Degree},
		{"departamento", &r.Department},
	} {
		val, err := scalarText(fields[f.key])
		if err != nil {
			if r.fault == "" {
				r.fault = f.key + ": " + err.Error()
			}
			continue
		}
		*f.dst = val
	}
	return nil
}

// Fault describes why the record could not be read, if it could not.
func (r StudentRecord) Fault() string { return r.fault }

func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.New("must be a string or a number")
	}
	return n.String(), nil
}

// ParseDocuments decodes the classes and members documents.
// Unknown fields are ignored. A syntax error, or a document of the wrong shape, yields a *MalformedInputError;
// records with fields of the wrong type are kept and carry a Fault.
func ParseDocuments(classes, members []byte) (Documents, error) {
	var docs Documents
	if err := decode(ClassesDocument, classes, &docs.Classes); err != nil {
		return Documents{}, err
	}
	if err := decode(MembersDocument, members, &docs.Members); err != nil {
		return Documents{}, err
	}
	return docs, nil
}

func decode(name string, data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return &MalformedInputError{Document: name, Err: errors.New("empty document")}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &MalformedInputError{Document: name, Err: err}
	}
	return nil
}

// ClassKey builds the group code of a class: "<code>-<classCode>-<semester>", without empty parts.
func ClassKey(code, classCode, semester string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{code, classCode, semester} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}
