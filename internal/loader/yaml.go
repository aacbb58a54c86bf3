// Package loader seeds automation definitions from YAML files on disk.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cadenzahq/cadenza/internal/engine"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// LoadDirectory parses every .yaml/.yml file in dir and registers it. A file
// whose content matches the stored latest version is skipped, so restarts do
// not create new versions. A file that fails validation is reported and the
// rest still load.
func LoadDirectory(dir string, registry *engine.DefinitionRegistry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read definitions dir %s: %w", dir, err)
	}

	var failed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := loadFile(path, registry); err != nil {
			slog.Error("Failed to load automation definition", "file", path, "error", err)
			failed = append(failed, entry.Name())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to load definitions: %s", strings.Join(failed, ", "))
	}
	return nil
}

func loadFile(path string, registry *engine.DefinitionRegistry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var def domain.Automation
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if def.ID == "" {
		return errors.New("definition file must carry an explicit id")
	}

	latest, err := registry.Latest(def.ID)
	if err != nil && !errors.Is(err, engine.ErrAutomationNotFound) {
		return err
	}
	if latest != nil && sameDefinition(latest, &def) {
		slog.Debug("Definition unchanged, skipping", "automation_id", def.ID, "version", latest.Version)
		return nil
	}

	registered, err := registry.Register(&def)
	if err != nil {
		return err
	}
	slog.Info("Registered automation definition from file", "file", filepath.Base(path),
		"automation_id", registered.ID, "version", registered.Version)
	return nil
}

// sameDefinition compares the author-controlled parts of two definitions.
func sameDefinition(a, b *domain.Automation) bool {
	type content struct {
		Name        string
		Description string
		Status      domain.AutomationStatus
		Trigger     domain.Trigger
		Actions     []domain.Action
		Policy      domain.Policy
	}
	aj, errA := json.Marshal(content{a.Name, a.Description, a.Status, a.Trigger, a.Actions, a.Policy})
	bj, errB := json.Marshal(content{b.Name, b.Description, b.Status, b.Trigger, b.Actions, b.Policy})
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
