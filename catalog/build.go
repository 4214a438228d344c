/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

	slugRe   = regexp.MustCompile(`[^a-z0-9]+`)
	itemRe   = regexp.MustCompile(`^(\d+) - (.+)\.(\w+)$`)
	ownerSep = " - "
)

func Slugify(name string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// Build scans root for one folder per category, named "Player - Category",
// each holding images named "NN - Answer.ext". Images without a numeric
// prefix are numbered in name order and answered by their file stem. Item
// sources are rooted at mediaPrefix.
func Build(fs afero.Fs, root, mediaPrefix string, now time.Time) (*Manifest, error) {
	dirs, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, err
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name() < dirs[j].Name() })

	m := &Manifest{
		Version:     1,
		GeneratedAt: now.UTC().Format("2006-01-02T15:04:05.000000Z"),
		Categories:  []Category{},
	}

	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		folder := dir.Name()
		player, name := "", folder
		if before, after, ok := strings.Cut(folder, ownerSep); ok {
			player, name = before, after
		}
		cat := Category{ID: Slugify(name), Name: name, Player: player, Items: []Item{}}

		files, err := afero.ReadDir(fs, path.Join(root, folder))
		if err != nil {
			return nil, err
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

		auto := 1
		for _, f := range files {
			ext := strings.ToLower(path.Ext(f.Name()))
			if f.IsDir() || !imageExts[ext] {
				continue
			}

			var index int
			var answer string
			if match := itemRe.FindStringSubmatch(f.Name()); match != nil {
				index, _ = strconv.Atoi(match[1])
				answer = match[2]
			} else {
				index = auto
				answer = strings.TrimSuffix(f.Name(), path.Ext(f.Name()))
				auto++
			}

			cat.Items = append(cat.Items, Item{
				ID:     fmt.Sprintf("%s-%d", cat.ID, index),
				Index:  index,
				Answer: answer,
				Src:    path.Join("/", mediaPrefix, folder, f.Name()),
			})
		}
		m.Categories = append(m.Categories, cat)
	}

	m.index()
	return m, nil
}

// Write stores the manifest as indented JSON.
func Write(fs afero.Fs, file string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(path.Dir(file), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, file, data, 0o644)
}
