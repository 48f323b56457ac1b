// Package catalog loads the load-once task and credential sources.
//
// Both sources are JSON arrays. When no path is configured the seed data
// embedded in the binary is used.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"field-review/backend/internal/models"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
)

var (
	//go:embed data/tasks.json
	seedTasks []byte

	//go:embed data/users.json
	seedUsers []byte
)

var (
	ErrDuplicateTask       = errors.New("duplicate task id")
	ErrDuplicateCredential = errors.New("duplicate credential email")
	ErrTaskNotPending      = errors.New("catalog task must start pending")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("catalogdate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.CatalogDateLayout, fl.Field().String())
		return err == nil
	})
	if err != nil {
		panic(fmt.Sprintf("catalog: register catalogdate validation: %v", err))
	}
	return v
}

// LoadTasks reads the task catalog from path, or the embedded seed when path
// is empty.
func LoadTasks(path string) ([]models.Task, error) {
	data, err := readSource(path, seedTasks)
	if err != nil {
		return nil, fmt.Errorf("read task catalog: %w", err)
	}
	return ParseTasks(data)
}

// LoadCredentials reads the credential source from path, or the embedded seed
// when path is empty.
func LoadCredentials(path string) ([]models.Credential, error) {
	data, err := readSource(path, seedUsers)
	if err != nil {
		return nil, fmt.Errorf("read credential source: %w", err)
	}
	return ParseCredentials(data)
}

func ParseTasks(data []byte) ([]models.Task, error) {
	var tasks []models.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode task catalog: %w", err)
	}

	seen := make(map[models.TaskID]struct{}, len(tasks))
	for i, task := range tasks {
		if err := validate.Struct(task); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		if task.Complete || task.ReviewedAt != nil {
			return nil, fmt.Errorf("task %s: %w", task.ID, ErrTaskNotPending)
		}
		if _, dup := seen[task.ID]; dup {
			return nil, fmt.Errorf("task %s: %w", task.ID, ErrDuplicateTask)
		}
		seen[task.ID] = struct{}{}
	}

	return tasks, nil
}

func ParseCredentials(data []byte) ([]models.Credential, error) {
	var creds []models.Credential
	if err := sonic.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credential source: %w", err)
	}

	seen := make(map[string]struct{}, len(creds))
	for i, cred := range creds {
		if err := validate.Struct(cred); err != nil {
			return nil, fmt.Errorf("credential %d: %w", i, err)
		}
		key := models.NormalizeEmail(cred.Email)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("credential %s: %w", cred.Email, ErrDuplicateCredential)
		}
		seen[key] = struct{}{}
	}

	return creds, nil
}

func readSource(path string, seed []byte) ([]byte, error) {
	if path == "" {
		return seed, nil
	}
	return os.ReadFile(path)
}
