/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package catalog reads the content manifest: categories, their owning
// player, and the ordered items shown during duels.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoManifest  = errors.New("manifest not found")
	ErrBadManifest = errors.New("manifest could not be parsed")
)

type Item struct {
	ID     string `json:"id" yaml:"id"`
	Index  int    `json:"index" yaml:"index"`
	Answer string `json:"answer" yaml:"answer"`
	Src    string `json:"src" yaml:"src"`
}

type Category struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Player string `json:"player" yaml:"player"`
	Items  []Item `json:"items" yaml:"items"`
}

type Manifest struct {
	Version     int        `json:"version" yaml:"version"`
	GeneratedAt string     `json:"generatedAt" yaml:"generatedAt"`
	Categories  []Category `json:"categories" yaml:"categories"`

	byID map[string]int
}

// Load reads a manifest from path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, afero.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
		}
		return nil, err
	}

	m := &Manifest{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, m)
	default:
		err = json.Unmarshal(data, m)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadManifest, err)
	}

	m.index()
	return m, nil
}

// New builds a manifest from categories held in memory.
func New(categories ...Category) *Manifest {
	m := &Manifest{Version: 1, Categories: append([]Category{}, categories...)}
	m.index()
	return m
}

// Empty returns a manifest without categories.
func Empty() *Manifest {
	return New()
}

// index sorts items by index and builds the id lookup.
func (m *Manifest) index() {
	m.byID = make(map[string]int, len(m.Categories))
	for i := range m.Categories {
		items := m.Categories[i].Items
		sort.SliceStable(items, func(a, b int) bool { return items[a].Index < items[b].Index })
		m.byID[m.Categories[i].ID] = i
	}
}

func (m *Manifest) Category(id string) (*Category, bool) {
	i, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return &m.Categories[i], true
}

func (m *Manifest) HasCategory(id string) bool {
	_, ok := m.byID[id]
	return ok
}

// Item finds the item with the given index in a category.
func (m *Manifest) Item(categoryID string, index int) (Item, bool) {
	c, ok := m.Category(categoryID)
	if !ok {
		return Item{}, false
	}
	for _, it := range c.Items {
		if it.Index == index {
			return it, true
		}
	}
	return Item{}, false
}

// Next returns the item with the smallest index greater than index.
func (m *Manifest) Next(categoryID string, index int) (Item, bool) {
	c, ok := m.Category(categoryID)
	if !ok {
		return Item{}, false
	}
	for _, it := range c.Items {
		if it.Index > index {
			return it, true
		}
	}
	return Item{}, false
}

// OwnedBy returns the first category whose owning player matches name,
// ignoring case.
func (m *Manifest) OwnedBy(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, c := range m.Categories {
		if strings.EqualFold(c.Player, name) {
			return c.ID, true
		}
	}
	return "", false
}
