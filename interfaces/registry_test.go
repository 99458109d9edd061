package interfaces

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelObjectKey(t *testing.T) {
	assert.Equal(t, "models/abc/v1.model", ModelObjectKey("abc", "v1"))
	assert.Equal(t, ModelObjectKey("abc", "v1"), ModelObjectKey("abc", "v1"))

	record := ModelRecord{ID: "X", Version: "v2"}
	assert.Equal(t, "models/X/v2.model", record.ObjectKey())
}

func TestModelStatus_StringAndParse(t *testing.T) {
	tests := []struct {
		status ModelStatus
		wire   string
	}{
		{Created, "CREATED"},
		{Uploading, "UPLOADING"},
		{Active, "ACTIVE"},
		{Inactive, "INACTIVE"},
		{ErrorStatus("artifact missing"), "ERROR: artifact missing"},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			assert.Equal(t, tt.wire, tt.status.String())

			parsed, err := ParseModelStatus(tt.wire)
			require.NoError(t, err)
			assert.Equal(t, tt.status, parsed)
		})
	}

	_, err := ParseModelStatus("DELETED")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestModelRecord_JSON(t *testing.T) {
	record := ModelRecord{ID: "id-1", Name: "resnet", Version: "v1", Status: ErrorStatus("boom")}

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"ERROR: boom"`)

	var decoded ModelRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, record.Status, decoded.Status)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    StatusState
		to      StatusState
		allowed bool
	}{
		{"created to uploading", StatusCreated, StatusUploading, true},
		{"created to active directly", StatusCreated, StatusActive, false},
		{"uploading to active", StatusUploading, StatusActive, true},
		{"uploading restores created", StatusUploading, StatusCreated, true},
		{"active to inactive", StatusActive, StatusInactive, true},
		{"active to error", StatusActive, StatusError, true},
		{"active re-upload", StatusActive, StatusUploading, true},
		{"inactive to active", StatusInactive, StatusActive, true},
		{"error to active", StatusError, StatusActive, false},
		{"error re-upload", StatusError, StatusUploading, true},
		{"created to inactive", StatusCreated, StatusInactive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidateModelVersion(t *testing.T) {
	for _, ok := range []string{"v1", "1.0.0", "2024-01-01"} {
		assert.NoError(t, ValidateModelVersion(ok), ok)
	}
	for _, bad := range []string{"", " ", ".", "..", "v1/../../etc", `a\b`} {
		assert.ErrorIs(t, ValidateModelVersion(bad), ErrInvalidInput, bad)
	}
	assert.ErrorIs(t, ValidateModelName(""), ErrInvalidInput)
	assert.NoError(t, ValidateModelName("resnet"))
}

func TestLocalObject_ScopedRelease(t *testing.T) {
	obj, err := LocalObjectFromReader(bytes.NewReader([]byte("payload")), "local-object-*")
	require.NoError(t, err)

	size, err := obj.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	buf := make([]byte, 7)
	_, err = obj.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf))

	path := obj.Path()
	require.NoError(t, obj.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// second close is a no-op
	assert.NoError(t, obj.Close())
}

func TestNewStorageBackendLocation(t *testing.T) {
	loc, err := NewStorageBackendLocation("s3://AK:SK@models-bucket/?region=eu-west-1&path_style=true")
	require.NoError(t, err)
	assert.True(t, loc.IsS3())
	assert.Equal(t, "models-bucket", loc.Host)
	assert.Equal(t, "eu-west-1", loc.GetParam("region"))
	assert.True(t, loc.GetParamBool("path_style"))
	require.NotNil(t, loc.Auth)
	assert.Equal(t, "AK", loc.Auth.Username())

	_, err = NewStorageBackendLocation("ftp://host/path")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)
}
