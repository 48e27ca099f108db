// Command relsource compiles declarative YAML model files into PostgreSQL
// DDL. By default the statements print to stdout; with -apply they run
// against the database named by -dsn.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/syssam/relsource"
	"github.com/syssam/relsource/dialect"
	"github.com/syssam/relsource/dialect/sql"
	"github.com/syssam/relsource/dialect/sqlschema"
	"github.com/syssam/relsource/schema"
)

func main() {
	var (
		models    = flag.String("models", "", "path to the YAML model declarations (required)")
		dsn       = flag.String("dsn", os.Getenv("RELSOURCE_DSN"), "postgres connection string")
		namespace = flag.String("schema", "", "default namespace for models that declare none")
		apply     = flag.Bool("apply", false, "execute the statements instead of printing them")
		debug     = flag.Bool("debug", false, "log every executed statement")
	)
	flag.Parse()
	if *models == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*models, *dsn, *namespace, *apply, *debug); err != nil {
		log.Fatalf("relsource: %v", err)
	}
}

func run(models, dsn, namespace string, apply, debug bool) error {
	declared, err := schema.LoadFile(models)
	if err != nil {
		return err
	}
	if !apply {
		for _, m := range declared {
			statements, err := sqlschema.Define(m, namespace)
			if err != nil {
				return err
			}
			for _, stmt := range statements {
				fmt.Println(stmt + ";")
			}
		}
		return nil
	}
	if dsn == "" {
		return fmt.Errorf("-apply needs -dsn or RELSOURCE_DSN")
	}
	drv, err := sql.Open(dialect.Postgres, dsn)
	if err != nil {
		return err
	}
	defer drv.Close()
	var d dialect.Driver = drv
	if debug {
		d = dialect.Debug(d)
	}
	src := relsource.New(d, relsource.WithSchema(namespace))
	if err := src.Register(declared...); err != nil {
		return err
	}
	return src.Define(context.Background())
}
