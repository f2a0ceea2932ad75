package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// categories.yaml
//
//	categories:
//	  Juguetes: 20
type categoriesFile struct {
	Categories map[string]int `yaml:"categories"`
}

// LoadCategoriesはカテゴリ名→割引率(%)を読む。起動時に1回だけ呼ぶ。
func LoadCategories(path string) (map[string]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}

	var f categoriesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse categories file %s: %w", path, err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("categories file %s has no categories", path)
	}
	for name := range f.Categories {
		if name == "" {
			return nil, fmt.Errorf("categories file %s has an empty category name", path)
		}
	}
	return f.Categories, nil
}
