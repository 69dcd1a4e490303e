package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"outsider/internal/config"
	"outsider/internal/logging"
	"outsider/internal/scenario"

	"github.com/rs/zerolog/log"
)

func main() {
	filePath := flag.String("file", "", "path to scenarios csv (scenario,role rows); empty checks the built-in table")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, true)

	path := *filePath
	if path == "" {
		path = cfg.ScenariosFile
	}

	catalog := scenario.Default()
	if path != "" {
		loaded, err := scenario.LoadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("invalid scenarios file")
		}
		catalog = loaded
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tROLES")
	for i := 0; i < catalog.Len(); i++ {
		entry := catalog.At(i)
		fmt.Fprintf(w, "%s\t%d\n", entry.Name, len(entry.Roles))
	}
	_ = w.Flush()
	fmt.Printf("\n%d scenarios, rooms hold at most %d players\n", catalog.Len(), catalog.Capacity())
}
