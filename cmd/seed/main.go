// seed carga el catálogo base desde archivos CSV: insumos del CNIS o
// instituciones por CLUES. Los archivos oficiales vienen en ISO-8859-1.
//
// Uso:
//
//	go run ./cmd/seed -kind products [-utf8] cnis.csv
//	go run ./cmd/seed -kind institutions clues.csv
//
// Columnas de products: clave;descripcion;unidad;categoria;iva
// Columnas de institutions: clues;clues_ib;nombre;tipo;localidad
// Los registros que ya existen se omiten.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/Farmacia-api/internal/application/catalog"
	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

type counters struct {
	created, skipped, failed int
}

func main() {
	kind := flag.String("kind", "products", "products | institutions")
	utf8 := flag.Bool("utf8", false, "el archivo ya viene en UTF-8")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Uso: seed -kind products|institutions archivo.csv")
		os.Exit(1)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var src io.Reader = f
	if !*utf8 {
		src = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}
	r := csv.NewReader(src)
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}
	// encabezado opcional
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel}).WithComponent("seed")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conexión a PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Migración: %v\n", err)
		os.Exit(1)
	}
	uc := catalog.NewUseCase(postgres.NewRepos(pool), ports.NopCache{}, log)

	var c counters
	switch *kind {
	case "products":
		c = seedProducts(ctx, uc, rows)
	case "institutions":
		c = seedInstitutions(ctx, uc, rows)
	default:
		fmt.Fprintf(os.Stderr, "Tipo desconocido: %s\n", *kind)
		os.Exit(1)
	}

	fmt.Printf("%s: %d creados, %d existentes, %d con error\n", *kind, c.created, c.skipped, c.failed)
	if c.failed > 0 {
		os.Exit(2)
	}
}

func seedProducts(ctx context.Context, uc *catalog.UseCase, rows [][]string) counters {
	var c counters
	for i, row := range rows {
		if len(row) < 2 {
			fmt.Fprintf(os.Stderr, "Renglón %d: faltan columnas\n", i+1)
			c.failed++
			continue
		}
		in := dto.CreateProductRequest{
			Key:         row[0],
			Description: row[1],
			UnitMeasure: col(row, 2),
			Category:    col(row, 3),
			TaxRate:     decimal.Zero,
		}
		if v := col(row, 4); v != "" {
			rate, err := decimal.NewFromString(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Renglón %d: IVA inválido %q\n", i+1, v)
				c.failed++
				continue
			}
			in.TaxRate = rate
		}
		c.add(i, row[0], func() error {
			_, err := uc.CreateProduct(ctx, in)
			return err
		})
	}
	return c
}

func seedInstitutions(ctx context.Context, uc *catalog.UseCase, rows [][]string) counters {
	var c counters
	for i, row := range rows {
		if len(row) < 3 {
			fmt.Fprintf(os.Stderr, "Renglón %d: faltan columnas\n", i+1)
			c.failed++
			continue
		}
		in := dto.CreateInstitutionRequest{
			Clue:     row[0],
			IBClue:   col(row, 1),
			Name:     row[2],
			Type:     col(row, 3),
			Locality: col(row, 4),
		}
		c.add(i, row[0], func() error {
			_, err := uc.CreateInstitution(ctx, in)
			return err
		})
	}
	return c
}

func (c *counters) add(i int, key string, create func() error) {
	err := create()
	switch {
	case err == nil:
		c.created++
	case errors.Is(err, domain.ErrDuplicate):
		c.skipped++
	default:
		fmt.Fprintf(os.Stderr, "Renglón %d (%s): %v\n", i+1, key, err)
		c.failed++
	}
}

func col(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	h := strings.ToLower(strings.TrimSpace(row[0]))
	return h == "clave" || h == "clues" || h == "key"
}
