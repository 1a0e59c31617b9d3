package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// EnvVarPrefix is prepended to a key to form the scheduler variable name.
const EnvVarPrefix = "AIRFLOW_VAR_"

// EnvStore looks secrets up in the process environment and in dotenv files.
// Files are read once at construction and never modify the environment.
type EnvStore struct {
	lookup func(string) (string, bool)
	files  map[string]string
}

// NewEnvStore reads the given dotenv files. Later files override earlier ones.
func NewEnvStore(files ...string) (*EnvStore, error) {
	merged := make(map[string]string)
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("read secrets file %s: %w", f, err)
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	return &EnvStore{lookup: os.LookupEnv, files: merged}, nil
}

// Get returns the value of AIRFLOW_VAR_<KEY> or, failing that, <KEY>. The
// environment wins over dotenv files.
func (s *EnvStore) Get(ctx context.Context, key string) (string, error) {
	for _, name := range candidateNames(key) {
		if v, ok := s.lookup(name); ok {
			return v, nil
		}
		if v, ok := s.files[name]; ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s (looked up %s): %w", key, strings.Join(candidateNames(key), ", "), pipekit.ErrSecretNotFound)
}

func (s *EnvStore) String() string {
	return "environment"
}

func candidateNames(key string) []string {
	upper := strings.ToUpper(key)
	return []string{EnvVarPrefix + upper, key}
}

var _ pipekit.SecretStore = (*EnvStore)(nil)
