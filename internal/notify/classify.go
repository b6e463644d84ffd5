package notify

import (
	"fmt"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/pkg/indexer"
)

// Class is the index category of a node type.
type Class int

const (
	ClassNone Class = iota
	ClassVocabulary
	ClassConcept
)

// Classifier maps node type ids to a Class. Its two type sets are disjoint,
// so a node lands in at most one list.
type Classifier struct {
	vocabulary map[string]struct{}
	concept    map[string]struct{}
}

// NewClassifier builds a Classifier. Overlapping sets are rejected.
func NewClassifier(vocabularyTypes, conceptTypes []string) (*Classifier, error) {
	c := &Classifier{
		vocabulary: make(map[string]struct{}, len(vocabularyTypes)),
		concept:    make(map[string]struct{}, len(conceptTypes)),
	}
	for _, t := range vocabularyTypes {
		c.vocabulary[t] = struct{}{}
	}
	for _, t := range conceptTypes {
		if _, dup := c.vocabulary[t]; dup {
			return nil, termerrors.ConfigError(
				fmt.Sprintf("type %q is both a vocabulary and a concept type", t), nil)
		}
		c.concept[t] = struct{}{}
	}
	return c, nil
}

// Classify returns the class of a node type id.
func (c *Classifier) Classify(typeID string) Class {
	if _, ok := c.vocabulary[typeID]; ok {
		return ClassVocabulary
	}
	if _, ok := c.concept[typeID]; ok {
		return ClassConcept
	}
	return ClassNone
}

// Affected splits a graph group into vocabulary and concept ids, keeping
// node order. Nodes of other types are dropped.
func (c *Classifier) Affected(g Group) indexer.AffectedNodes {
	a := indexer.AffectedNodes{
		GraphID:      g.GraphID,
		Vocabularies: []string{},
		Concepts:     []string{},
	}
	for _, n := range g.Nodes {
		switch c.Classify(n.Type.ID) {
		case ClassVocabulary:
			a.Vocabularies = append(a.Vocabularies, n.ID)
		case ClassConcept:
			a.Concepts = append(a.Concepts, n.ID)
		}
	}
	return a
}

// Group is the nodes of one graph, in input order.
type Group struct {
	GraphID string
	Nodes   []Node
}

// GroupByGraph partitions nodes by graph id. Groups are ordered by the first
// appearance of their graph id; every node lands in exactly one group.
func GroupByGraph(nodes []Node) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, n := range nodes {
		gid := n.Type.Graph.ID
		i, ok := index[gid]
		if !ok {
			i = len(groups)
			index[gid] = i
			groups = append(groups, Group{GraphID: gid})
		}
		groups[i].Nodes = append(groups[i].Nodes, n)
	}
	return groups
}
