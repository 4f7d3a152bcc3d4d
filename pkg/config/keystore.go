package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keystore is the parsed keystore.yaml with APK signing material.
type Keystore struct {
	Path        string `yaml:"keystore_path" json:"keystore_path"`
	Alias       string `yaml:"keystore_alias" json:"keystore_alias"`
	Password    string `yaml:"keystore_password" json:"keystore_password"`
	KeyPassword string `yaml:"key_password" json:"key_password"`
}

// LoadKeystore reads keystore.yaml from path and resolves the keystore
// file against projectRoot. Passwords may come from the environment
// instead of the file.
func LoadKeystore(path, projectRoot string) (*Keystore, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("keystore configuration not found at: %s", path)
		}
		return nil, fmt.Errorf("open keystore configuration: %w", err)
	}
	defer f.Close()

	ks := &Keystore{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(ks); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("keystore configuration is empty: %s", path)
		}
		return nil, fmt.Errorf("parse keystore configuration: %w", err)
	}

	if v := os.Getenv("APKFORGE_KEYSTORE_PASSWORD"); v != "" {
		ks.Password = v
	}
	if v := os.Getenv("APKFORGE_KEY_PASSWORD"); v != "" {
		ks.KeyPassword = v
	}

	if err := ks.validate(projectRoot); err != nil {
		return nil, err
	}
	return ks, nil
}

func (k *Keystore) validate(projectRoot string) error {
	var missing []string
	if k.Path == "" {
		missing = append(missing, "keystore_path")
	}
	if k.Alias == "" {
		missing = append(missing, "keystore_alias")
	}
	if k.Password == "" {
		missing = append(missing, "keystore_password")
	}
	if k.KeyPassword == "" {
		missing = append(missing, "key_password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required keystore fields: %s", strings.Join(missing, ", "))
	}

	if !filepath.IsAbs(k.Path) {
		k.Path = filepath.Join(projectRoot, k.Path)
	}
	k.Path = filepath.Clean(k.Path)

	if _, err := os.Stat(k.Path); err != nil {
		return fmt.Errorf("keystore file not found: %s", k.Path)
	}
	return nil
}
