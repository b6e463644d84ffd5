//go:build ignore

// Package main generates synthetic notification files for load testing the
// spool directory.
// Usage: go run scripts/generate-notifications.go -graphs 20 -files 500 -output .termsearch/spool
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var (
	numGraphs   = flag.Int("graphs", 20, "Number of distinct graphs")
	numFiles    = flag.Int("files", 500, "Number of notification files to generate")
	maxNodes    = flag.Int("nodes", 25, "Maximum nodes per notification")
	deletePct   = flag.Int("delete-pct", 10, "Percentage of NodeDeletedEvent notifications")
	otherPct    = flag.Int("other-pct", 15, "Percentage of nodes with a type the index ignores")
	outputDir   = flag.String("output", ".termsearch/spool", "Spool directory to write into")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
	outputIndex = 0
)

// Wire shapes, kept local so the script has no module imports.
type graphRef struct {
	ID string `json:"id"`
}

type nodeType struct {
	ID    string   `json:"id"`
	Graph graphRef `json:"graph"`
}

type node struct {
	ID   string   `json:"id"`
	Type nodeType `json:"type"`
}

type notification struct {
	Type string `json:"type"`
	Body struct {
		Nodes []node `json:"nodes"`
	} `json:"body"`
}

var (
	vocabularyTypes = []string{"TerminologicalVocabulary", "Vocabulary"}
	otherTypes      = []string{"Term", "Collection", "Organization"}
)

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if *numGraphs < 1 || *numFiles < 1 || *maxNodes < 1 {
		fmt.Fprintln(os.Stderr, "Error: -graphs, -files and -nodes must be positive")
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d notifications over %d graphs in %s...\n", *numFiles, *numGraphs, *outputDir)

	// Spool processes oldest first; stagger mtimes so file order is stable.
	base := time.Now().Add(-time.Duration(*numFiles) * time.Second)
	var nodes, deletes int
	for i := 0; i < *numFiles; i++ {
		n := randomNotification()
		if n.Type == "NodeDeletedEvent" {
			deletes++
		}
		nodes += len(n.Body.Nodes)
		if err := writeNotification(n, base.Add(time.Duration(i)*time.Second)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing notification %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d notifications (%d deletes, %d nodes).\n", *numFiles, deletes, nodes)
}

func randomNotification() notification {
	var n notification
	n.Type = "NodeSavedEvent"
	if rand.Intn(100) < *deletePct {
		n.Type = "NodeDeletedEvent"
	}

	count := 1 + rand.Intn(*maxNodes)
	n.Body.Nodes = make([]node, 0, count)
	for j := 0; j < count; j++ {
		graph := fmt.Sprintf("graph-%03d", rand.Intn(*numGraphs))
		n.Body.Nodes = append(n.Body.Nodes, randomNode(graph))
	}
	return n
}

func randomNode(graph string) node {
	var typeID, id string
	switch r := rand.Intn(100); {
	case r < *otherPct:
		typeID = otherTypes[rand.Intn(len(otherTypes))]
		id = fmt.Sprintf("%s-term-%d", graph, rand.Intn(1000))
	case r < *otherPct+5:
		typeID = vocabularyTypes[rand.Intn(len(vocabularyTypes))]
		id = graph + "-vocabulary"
	default:
		typeID = "Concept"
		id = fmt.Sprintf("%s-concept-%d", graph, rand.Intn(500))
	}
	return node{ID: id, Type: nodeType{ID: typeID, Graph: graphRef{ID: graph}}}
}

// writeNotification writes under a temporary name and renames, so the spool
// never reads a partial file.
func writeNotification(n notification, modTime time.Time) error {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("notification-%06d.json", outputIndex)
	outputIndex++

	tmp := filepath.Join(*outputDir, name+".incoming")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Chtimes(tmp, modTime, modTime); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(*outputDir, name))
}
