package main

import (
	"fmt"
	"log"

	"classy/internal/data"

	"github.com/alexflint/go-arg"
)

type args struct {
	Index string `arg:"positional,required" help:"inverted index file"`
	Rows  int    `arg:"--rows" default:"10" help:"number of rows to print"`
}

func main() {
	var a args
	arg.MustParse(&a)

	fmt.Printf("Inspecting index: %s\n", a.Index)

	idx, err := data.LoadIndex(a.Index)
	if err != nil {
		log.Fatalf("Failed to load index: %v", err)
	}

	X := idx.ToCSR()
	fmt.Printf("  Rows: %d\n", data.GetNRows(idx))
	fmt.Printf("  Features: %d\n", X.NCols)
	fmt.Printf("  Non-zero entries: %d\n", len(X.Data))
	fmt.Printf("  Text ids: %t\n", len(idx.TextIDs) > 0)
	fmt.Printf("  Gold labels: %t\n", len(idx.Labels) > 0)

	fmt.Println("\nFirst rows:")
	for i := 0; i < len(idx.Rows) && i < a.Rows; i++ {
		id := fmt.Sprint(i + 1)
		if len(idx.TextIDs) > 0 {
			id = idx.TextIDs[i]
		}
		label := "-"
		if i < len(idx.Labels) {
			label = fmt.Sprint(idx.Labels[i])
		}
		fmt.Printf("%s\tlabel=%s\tnnz=%d\t%v\n", id, label, idx.Rows[i].Len(), idx.Rows[i].Indices)
	}
}
