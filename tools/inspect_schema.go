// Prints the tables AutoMigrate creates, run with go run tools/inspect_schema.go
package main

import (
	"fmt"
	"log"

	"github.com/localnerve/permit-review/internal/database"
)

func main() {
	db, err := database.OpenMemory()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close(db)

	var tables []string
	if err := db.Raw("SELECT name FROM sqlite_master WHERE type='table' ORDER BY name").Scan(&tables).Error; err != nil {
		log.Fatal(err)
	}

	for _, table := range tables {
		fmt.Printf("\n=== Table: %s ===\n", table)
		var schema string
		db.Raw("SELECT sql FROM sqlite_master WHERE name = ?", table).Scan(&schema)
		fmt.Println(schema)

		var indexes []string
		db.Raw("SELECT sql FROM sqlite_master WHERE type='index' AND tbl_name = ? AND sql IS NOT NULL", table).Scan(&indexes)
		for _, index := range indexes {
			fmt.Println(index)
		}
	}
}
