// Package terminology loads the code dictionary consumed by the pipeline.
// The table is built once at process start and never rewritten.
package terminology

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

// Load reads the dictionary at path. Two JSON source shapes are accepted
// (a flat code→entry mapping or a list of entries carrying their own code
// field) plus XLSX workbooks, all normalized to the mapping form. Callers
// are expected to treat any error as non-fatal and continue with an empty
// table.
func Load(path string) (*domain.TerminologyTable, error) {
	if path == "" {
		return domain.NewTerminologyTable(nil), nil
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return loadWorkbook(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.NewTerminologyTable(nil), fmt.Errorf("read terminology file: %w", err)
	}
	return parseJSON(data)
}

func parseJSON(data []byte) (*domain.TerminologyTable, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return domain.NewTerminologyTable(nil), nil
	}

	if trimmed[0] == '[' {
		var list []domain.TerminologyEntry
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return domain.NewTerminologyTable(nil), fmt.Errorf("parse terminology list: %w", err)
		}
		entries := make(map[string]domain.TerminologyEntry, len(list))
		for _, entry := range list {
			if entry.Code == "" {
				continue
			}
			entries[entry.Code] = entry
		}
		return domain.NewTerminologyTable(entries), nil
	}

	var entries map[string]domain.TerminologyEntry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return domain.NewTerminologyTable(nil), fmt.Errorf("parse terminology map: %w", err)
	}
	for code, entry := range entries {
		if entry.Code == "" {
			entry.Code = code
			entries[code] = entry
		}
	}
	return domain.NewTerminologyTable(entries), nil
}

// loadWorkbook reads the first sheet of an XLSX export. Expected columns:
// code, positive terms, optional negative terms; term cells are split on
// ';'. A header row is skipped when its first cell is not code-like.
func loadWorkbook(path string) (*domain.TerminologyTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.NewTerminologyTable(nil), fmt.Errorf("open terminology workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.NewTerminologyTable(nil), nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return domain.NewTerminologyTable(nil), fmt.Errorf("read terminology sheet: %w", err)
	}

	entries := make(map[string]domain.TerminologyEntry, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		code := strings.TrimSpace(row[0])
		if code == "" {
			continue
		}
		if i == 0 && strings.EqualFold(code, "code") {
			continue
		}

		entry := domain.TerminologyEntry{Code: code}
		if len(row) > 1 {
			entry.PositiveTerms = splitTerms(row[1])
		}
		if len(row) > 2 {
			entry.NegativeTerms = splitTerms(row[2])
		}
		entries[code] = entry
	}
	return domain.NewTerminologyTable(entries), nil
}

func splitTerms(cell string) []string {
	parts := strings.Split(cell, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
