package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kotobaworks/kotoba/internal/morph"
	"github.com/kotobaworks/kotoba/internal/store"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <words.tsv>",
	Short: "Import a dictionary word list",
	Long: `Import words from a tab-separated file. Columns:

  bare  reading  pos  gloss  freq_rank  domain  grammar_tags  [root]

reading, gloss, freq_rank, domain, and grammar_tags may be empty; grammar_tags
is comma-separated; root names the bare form of an earlier row in the file.
A header line starting with "bare" is skipped. Missing readings are filled
from the tokenizer, and rows sharing reading, pos, and gloss with an earlier
row are linked as orthographic variants.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	analyzer, err := morph.NewAnalyzer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tokenizer init failed (%v), readings not normalized\n", err)
		analyzer = nil
	}

	imp := &importer{db: db, analyzer: analyzer, byBare: make(map[string]int64), byShape: make(map[string]int64)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if lineNo == 1 && strings.HasPrefix(line, "bare\t") {
			continue
		}
		if err := imp.importLine(line); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNo, err)
			imp.failed++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read word list: %w", err)
	}

	fmt.Printf("imported %d words (%d variants, %d already present, %d failed)\n",
		imp.imported, imp.variants, imp.skipped, imp.failed)
	return nil
}

type importer struct {
	db       *store.DB
	analyzer *morph.Analyzer

	byBare  map[string]int64 // bare form -> id, for root resolution
	byShape map[string]int64 // reading|pos|gloss -> id, for variant linking

	imported int
	variants int
	skipped  int
	failed   int
}

func (imp *importer) importLine(line string) error {
	fields := strings.Split(line, "\t")
	if len(fields) < 4 {
		return fmt.Errorf("want at least 4 tab-separated columns, got %d", len(fields))
	}
	// Pad optional trailing columns
	for len(fields) < 8 {
		fields = append(fields, "")
	}

	w := &store.Word{
		Bare:    strings.TrimSpace(fields[0]),
		Reading: strings.TrimSpace(fields[1]),
		POS:     strings.TrimSpace(fields[2]),
		Gloss:   strings.TrimSpace(fields[3]),
		Domain:  strings.TrimSpace(fields[5]),
	}
	if w.Bare == "" || w.POS == "" {
		return fmt.Errorf("bare and pos are required")
	}

	if rank := strings.TrimSpace(fields[4]); rank != "" {
		n, err := strconv.Atoi(rank)
		if err != nil || n < 0 {
			return fmt.Errorf("bad freq_rank %q", rank)
		}
		w.FreqRank = &n
	}
	if tags := strings.TrimSpace(fields[6]); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				w.GrammarTags = append(w.GrammarTags, tag)
			}
		}
	}

	imp.normalize(w)

	existing, err := imp.db.GetWordByBare(w.Bare, w.POS)
	if err != nil {
		return err
	}
	if existing != nil {
		imp.byBare[w.Bare] = existing.ID
		imp.skipped++
		return nil
	}

	if root := strings.TrimSpace(fields[7]); root != "" && root != w.Bare {
		if id, ok := imp.byBare[root]; ok {
			w.RootID = &id
		} else {
			fmt.Fprintf(os.Stderr, "word %q: root %q not seen yet, skipping link\n", w.Bare, root)
		}
	}

	if err := imp.db.CreateWord(w); err != nil {
		return err
	}

	// First entry of a shape is canonical; later spellings become variants.
	shape := w.Reading + "|" + w.POS + "|" + w.Gloss
	if canonical, ok := imp.byShape[shape]; ok && w.Reading != "" && w.Gloss != "" {
		if err := imp.db.LinkVariant(w.ID, canonical); err != nil {
			return err
		}
		imp.variants++
	} else {
		imp.byShape[shape] = w.ID
		imp.imported++
	}

	if _, ok := imp.byBare[w.Bare]; !ok {
		imp.byBare[w.Bare] = w.ID
	}
	return nil
}

// normalize lemmatizes single-token bare forms and fills missing readings
// from the tokenizer.
func (imp *importer) normalize(w *store.Word) {
	if imp.analyzer == nil {
		return
	}
	tokens := imp.analyzer.Analyze(w.Bare)
	if len(tokens) != 1 {
		return
	}
	tok := tokens[0]
	if tok.Lemma != "" && tok.Lemma != w.Bare {
		w.Bare = tok.Lemma
	}
	if w.Reading == "" && tok.Reading != "" {
		w.Reading = tok.Reading
	}
}
