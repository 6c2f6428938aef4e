package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ImportConfig describes the spreadsheet layout. Columns are zero-based.
type ImportConfig struct {
	FilePath          string
	SheetName         string // xlsx only; empty means the first sheet
	TopicColumn       int
	PhraseColumn      int
	TranslationColumn int
	LevelColumn       int // -1 when the sheet has no level column
	SkipHeader        bool
	// CreateTopics adds unknown topics at DefaultLevel or the row's level
	CreateTopics bool
	DefaultLevel int
}

// DefaultImportConfig returns the layout topic | phrase | translation | level
func DefaultImportConfig(path string) ImportConfig {
	return ImportConfig{
		FilePath:          path,
		TopicColumn:       0,
		PhraseColumn:      1,
		TranslationColumn: 2,
		LevelColumn:       3,
		SkipHeader:        true,
		DefaultLevel:      domain.MinLearnerLevel,
	}
}

// ImportResult summarizes an import run
type ImportResult struct {
	Rows          int
	Added         int
	Skipped       int
	TopicsCreated int
	Errors        []string
}

// Importer adds phrases from xlsx or csv files to a registry
type Importer struct {
	registry *Registry
}

// NewImporter creates an importer writing into registry
func NewImporter(registry *Registry) *Importer {
	return &Importer{registry: registry}
}

// Import reads the file and merges its phrases into the registry. Row
// problems are collected in the result; only unreadable files fail.
func (im *Importer) Import(cfg ImportConfig) (*ImportResult, error) {
	rows, err := readRows(cfg)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	batches := make(map[string][]domain.Phrase)
	var order []string

	for i, row := range rows {
		if i == 0 && cfg.SkipHeader {
			continue
		}
		result.Rows++
		line := i + 1

		topicID := cell(row, cfg.TopicColumn)
		phrase := cell(row, cfg.PhraseColumn)
		if topicID == "" && phrase == "" {
			result.Rows--
			continue
		}
		if topicID == "" || phrase == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: topic and phrase are required", line))
			continue
		}

		if _, err := im.registry.Topic(topicID); errors.Is(err, domain.ErrTopicNotFound) {
			if !cfg.CreateTopics {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: unknown topic %q", line, topicID))
				continue
			}
			level, err := rowLevel(row, cfg)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", line, err))
				continue
			}
			if err := im.registry.AddTopic(&domain.Topic{ID: topicID, Title: topicID, Level: level}); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", line, err))
				continue
			}
			result.TopicsCreated++
		}

		if _, ok := batches[topicID]; !ok {
			order = append(order, topicID)
		}
		batches[topicID] = append(batches[topicID], domain.Phrase{
			Text:        phrase,
			Translation: cell(row, cfg.TranslationColumn),
		})
	}

	for _, topicID := range order {
		phrases := batches[topicID]
		added, err := im.registry.AddPhrases(topicID, phrases)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Added += added
		result.Skipped += len(phrases) - added
	}

	return result, nil
}

func readRows(cfg ImportConfig) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(cfg.FilePath)) {
	case ".csv":
		return readCSV(cfg.FilePath)
	case ".xlsx", ".xlsm":
		return readExcel(cfg.FilePath, cfg.SheetName)
	default:
		return nil, domain.Invalidf("unsupported import file %s", filepath.Base(cfg.FilePath))
	}
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func rowLevel(row []string, cfg ImportConfig) (int, error) {
	raw := cell(row, cfg.LevelColumn)
	if raw == "" {
		return cfg.DefaultLevel, nil
	}
	level, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalidf("level %q is not a number", raw)
	}
	return level, nil
}
