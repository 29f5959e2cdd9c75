package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/alpmdb/internal/logger"
)

// NewRepoServer serves dir over HTTP for the duration of the test. http.FileServer answers
// conditional requests from the files' modification times.
func NewRepoServer(t *testing.T, dir string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(server.Close)
	logger.Debug("test repository server started", logger.Fields{"url": server.URL, "dir": dir})
	return server
}

// SetupTestConfig writes a configuration with root and a "core" repository served from
// repoURL, and returns its path.
func SetupTestConfig(t *testing.T, root, repoURL string) string {
	t.Helper()
	config := fmt.Sprintf(`root_path: %s
signature_level: never
repositories:
  - name: core
    servers:
      - %s
settings:
  log_level: error
`, root, repoURL)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	return configPath
}
