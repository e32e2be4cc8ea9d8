package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// envFileCandidates lists env files in priority order: $CAREERFORGE_ENV_FILE,
// ./.env, then ~/.careerforge/env. Duplicates are dropped.
func envFileCandidates() []string {
	var raw []string
	if explicit := strings.TrimSpace(os.Getenv("CAREERFORGE_ENV_FILE")); explicit != "" {
		raw = append(raw, explicit)
	}
	raw = append(raw, ".env")
	if home, err := resolveHomeDir(); err == nil {
		raw = append(raw, filepath.Join(home, ConfigDir, "env"))
	}

	out := raw[:0]
	seen := make(map[string]bool, len(raw))
	for _, p := range raw {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// LoadEnvFileCandidates exports KEY=value pairs from the env files into the
// process environment. Variables already set are never overridden, so the
// first file to define a key wins.
func LoadEnvFileCandidates() {
	for _, p := range envFileCandidates() {
		_ = loadEnvFile(p)
	}
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := parseEnvLine(sc.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, val)
		}
	}
	return sc.Err()
}

// parseEnvLine accepts "KEY=value" with an optional "export " prefix.
// Quoted values are taken literally; unquoted values lose a trailing " # note".
func parseEnvLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	val = strings.TrimSpace(val)
	if n := len(val); n >= 2 && (val[0] == '"' || val[0] == '\'') && val[n-1] == val[0] {
		return key, val[1 : n-1], true
	}
	if i := strings.Index(val, " #"); i >= 0 {
		val = strings.TrimSpace(val[:i])
	}
	return key, val, true
}
