// Package evidence persists the artifacts of one model version: datasets,
// their shuffled and split variants, and anonymized related data.
package evidence

import (
	"fmt"
	"io"

	"github.com/tordrt/lala/internal/dataset"
	"github.com/tordrt/lala/internal/formatter"
	"github.com/tordrt/lala/internal/schema"
)

// Kind tags an evidence item and selects how it is serialized.
type Kind int

const (
	KindDataset Kind = iota
	KindDatasetAnonymized
	KindDatasetShuffled
	KindTrainDataset
	KindTestDataset
	KindRelatedData
)

// Payload carries the data of one evidence item. Dataset kinds use Dataset,
// KindRelatedData uses Rows.
type Payload struct {
	Dataset *dataset.Dataset
	Rows    *schema.RowSet
}

type kindFormat struct {
	name      string
	extension string
	serialize func(w io.Writer, p Payload) error
}

var kindFormats = map[Kind]kindFormat{
	KindDataset:           {name: "dataset", extension: ".csv", serialize: writeDataset},
	KindDatasetAnonymized: {name: "dataset_anonymized", extension: ".csv", serialize: writeDataset},
	KindDatasetShuffled:   {name: "dataset_shuffled", extension: ".csv", serialize: writeDataset},
	KindTrainDataset:      {name: "train_dataset", extension: ".csv", serialize: writeDataset},
	KindTestDataset:       {name: "test_dataset", extension: ".csv", serialize: writeDataset},
	KindRelatedData:       {name: "related_data", extension: ".csv", serialize: writeRelatedData},
}

func (k Kind) String() string {
	if format, ok := kindFormats[k]; ok {
		return format.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Extension returns the file extension of serialized items.
func (k Kind) Extension() string {
	return kindFormats[k].extension
}

// Serialize writes p in the format of kind k.
func (k Kind) Serialize(w io.Writer, p Payload) error {
	format, ok := kindFormats[k]
	if !ok {
		return fmt.Errorf("unknown evidence kind %d", int(k))
	}
	return format.serialize(w, p)
}

func writeDataset(w io.Writer, p Payload) error {
	if p.Dataset == nil {
		return fmt.Errorf("dataset evidence without a dataset")
	}
	return dataset.WriteCSV(w, p.Dataset)
}

func writeRelatedData(w io.Writer, p Payload) error {
	if p.Rows == nil {
		return fmt.Errorf("related data evidence without rows")
	}
	return formatter.NewCSVFormatter(w).Format(p.Rows)
}
