package upload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/supplyhub/backend/internal/domain"
)

// AdmissionRule is a caller-supplied predicate; a non-nil error rejects the file.
type AdmissionRule func(file domain.SourceFile) error

// Admission decides which candidate files become tasks.
type Admission struct {
	// MaxBytes caps the file size; zero disables the check.
	MaxBytes int64
	// AllowedTypes holds MIME types ("image/png") or wildcards ("image/*").
	// Empty means any type.
	AllowedTypes []string
	Rules        []AdmissionRule
}

func NewAdmission(policy domain.UploadPolicy, rules ...AdmissionRule) *Admission {
	return &Admission{
		MaxBytes:     policy.MaxBytes,
		AllowedTypes: policy.AllowedTypes,
		Rules:        rules,
	}
}

// Admit validates file and returns it with its detected content type and real size.
func (a *Admission) Admit(file domain.SourceFile) (domain.SourceFile, error) {
	name := strings.TrimSpace(file.Name)
	if name == "" {
		return file, &domain.ValidationError{Name: file.Name, Reason: "missing file name"}
	}
	file.Name = name

	if len(file.Content) == 0 {
		return file, &domain.ValidationError{Name: name, Reason: "file is empty"}
	}
	file.Size = int64(len(file.Content))

	if a.MaxBytes > 0 && file.Size > a.MaxBytes {
		return file, &domain.ValidationError{
			Name:   name,
			Reason: fmt.Sprintf("file is %d bytes, limit is %d", file.Size, a.MaxBytes),
		}
	}

	mt := mimetype.Detect(file.Content)
	file.ContentType = mt.String()
	if !a.typeAllowed(mt) {
		return file, &domain.ValidationError{
			Name:   name,
			Reason: fmt.Sprintf("type %s is not allowed", baseType(mt.String())),
		}
	}

	for _, rule := range a.Rules {
		if err := rule(file); err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				return file, ve
			}
			return file, &domain.ValidationError{Name: name, Reason: err.Error()}
		}
	}
	return file, nil
}

func (a *Admission) typeAllowed(mt *mimetype.MIME) bool {
	if len(a.AllowedTypes) == 0 {
		return true
	}
	detected := baseType(mt.String())
	for _, allowed := range a.AllowedTypes {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		switch {
		case allowed == "*/*" || allowed == "*":
			return true
		case strings.HasSuffix(allowed, "/*"):
			if strings.HasPrefix(detected, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		case mt.Is(allowed):
			return true
		}
	}
	return false
}

func baseType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// MaxFiles rejects every file once limit files have been admitted by the rule.
// The returned rule is meant for a single batch.
func MaxFiles(limit int) AdmissionRule {
	seen := 0
	return func(file domain.SourceFile) error {
		if seen >= limit {
			return &domain.ValidationError{Name: file.Name, Reason: fmt.Sprintf("batch is limited to %d files", limit)}
		}
		seen++
		return nil
	}
}
