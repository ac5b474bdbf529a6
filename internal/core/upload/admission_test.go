package upload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supplyhub/backend/internal/domain"
)

var jpegContent = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

func TestAdmission_Admit(t *testing.T) {
	tests := []struct {
		name      string
		admission Admission
		file      domain.SourceFile
		wantType  string
		reason    string
	}{
		{
			name:      "png accepted by wildcard",
			admission: Admission{AllowedTypes: []string{"image/*"}},
			file:      pngFile("a.png"),
			wantType:  "image/png",
		},
		{
			name:      "jpeg accepted by exact type",
			admission: Admission{AllowedTypes: []string{"image/png", " IMAGE/JPEG "}},
			file:      domain.SourceFile{Name: "b.jpg", Content: jpegContent},
			wantType:  "image/jpeg",
		},
		{
			name:      "anything goes without a type list",
			admission: Admission{},
			file:      domain.SourceFile{Name: "notes.txt", Content: []byte("plain words")},
			wantType:  "text/plain; charset=utf-8",
		},
		{
			name:      "star allows every type",
			admission: Admission{AllowedTypes: []string{"*/*"}},
			file:      domain.SourceFile{Name: "notes.txt", Content: []byte("plain words")},
			wantType:  "text/plain; charset=utf-8",
		},
		{
			name:      "text refused by image wildcard",
			admission: Admission{AllowedTypes: []string{"image/*"}},
			file:      domain.SourceFile{Name: "notes.txt", Content: []byte("plain words")},
			reason:    "type text/plain is not allowed",
		},
		{
			name:      "blank name",
			admission: Admission{},
			file:      domain.SourceFile{Name: "  ", Content: []byte("x")},
			reason:    "missing file name",
		},
		{
			name:      "empty content",
			admission: Admission{},
			file:      domain.SourceFile{Name: "a.png"},
			reason:    "file is empty",
		},
		{
			name:      "too large",
			admission: Admission{MaxBytes: 10},
			file:      pngFile("a.png"),
			reason:    "file is 104 bytes, limit is 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.admission.Admit(tt.file)
			if tt.reason != "" {
				var ve *domain.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.reason, ve.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.ContentType)
			assert.Equal(t, int64(len(tt.file.Content)), got.Size)
		})
	}
}

func TestAdmission_TrimsName(t *testing.T) {
	got, err := (&Admission{}).Admit(pngFile("  photo.png "))
	require.NoError(t, err)
	assert.Equal(t, "photo.png", got.Name)
}

func TestAdmission_Rules(t *testing.T) {
	a := NewAdmission(domain.UploadPolicy{AllowedTypes: []string{"image/*"}, MaxBytes: 1 << 20},
		func(f domain.SourceFile) error {
			if f.Name == "secret.png" {
				return errors.New("name is reserved")
			}
			return nil
		},
		MaxFiles(2),
	)

	_, err := a.Admit(pngFile("secret.png"))
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name is reserved", ve.Reason)

	_, err = a.Admit(pngFile("1.png"))
	require.NoError(t, err)
	_, err = a.Admit(pngFile("2.png"))
	require.NoError(t, err)
	_, err = a.Admit(pngFile("3.png"))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "batch is limited to 2 files", ve.Reason)
}
