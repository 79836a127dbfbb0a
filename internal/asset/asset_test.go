package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/tastack-go/intrinsics"
)

func writeContext(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestFingerprint_Deterministic(t *testing.T) {
	files := map[string]string{
		"Dockerfile":       "FROM public.ecr.aws/lambda/python:3.12\n",
		"main.py":          "def handler(event, context):\n    return {}\n",
		"requirements.txt": "boto3\n",
	}
	a, err := Fingerprint(writeContext(t, files))
	require.NoError(t, err)
	b, err := Fingerprint(writeContext(t, files))
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.Len(t, a.Hash, 64)
	assert.Equal(t, 3, a.Files)
}

func TestFingerprint_ContentChangesHash(t *testing.T) {
	dir := writeContext(t, map[string]string{
		"Dockerfile": "FROM scratch\n",
		"main.py":    "v1",
	})
	before, err := Fingerprint(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("v2"), 0644))
	after, err := Fingerprint(dir)
	require.NoError(t, err)

	assert.NotEqual(t, before.Hash, after.Hash)
}

func TestFingerprint_HonoursDockerignore(t *testing.T) {
	dir := writeContext(t, map[string]string{
		"Dockerfile":    "FROM scratch\n",
		".dockerignore": ".env\n__pycache__\n",
		"main.py":       "code",
	})
	before, err := Fingerprint(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("API_KEY=ak-1\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "__pycache__"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "__pycache__", "main.pyc"), []byte{0x42}, 0644))

	after, err := Fingerprint(dir)
	require.NoError(t, err)
	assert.Equal(t, before.Hash, after.Hash)
	assert.Equal(t, 3, after.Files)
}

func TestFingerprint_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := Fingerprint(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
	})

	t.Run("no Dockerfile", func(t *testing.T) {
		_, err := Fingerprint(writeContext(t, map[string]string{"main.py": "code"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no Dockerfile")
	})

	t.Run("file instead of directory", func(t *testing.T) {
		dir := writeContext(t, map[string]string{"Dockerfile": "FROM scratch\n"})
		_, err := Fingerprint(filepath.Join(dir, "Dockerfile"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})
}

func TestImageAsset_URI(t *testing.T) {
	a := ImageAsset{Hash: "abc123"}
	uri, ok := a.URI("hnb659fds").(intrinsics.Sub)
	require.True(t, ok)
	assert.Equal(t,
		"${AWS::AccountId}.dkr.ecr.${AWS::Region}.${AWS::URLSuffix}/cdk-hnb659fds-container-assets-${AWS::AccountId}-${AWS::Region}:abc123",
		uri.String)
	assert.Equal(t, "abc123", a.Tag())
}

func TestExternalImage_URI(t *testing.T) {
	var src ImageSource = ExternalImage("123456789012.dkr.ecr.us-east-1.amazonaws.com/ta:v1")
	assert.Equal(t, "123456789012.dkr.ecr.us-east-1.amazonaws.com/ta:v1", src.URI("ignored"))
}

func TestRepositoryName(t *testing.T) {
	assert.Equal(t,
		"cdk-hnb659fds-container-assets-123456789012-us-east-1",
		RepositoryName("hnb659fds", "123456789012", "us-east-1"))
}
