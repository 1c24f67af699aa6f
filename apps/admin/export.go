package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/placementcell/portal/core/csvexport"
	"github.com/placementcell/portal/services/api"
)

type exporter func(ctx context.Context, client *api.Client) ([]csvexport.Row, error)

var exporters = map[string]exporter{
	"jobs":         resourceRows((*api.Client).Jobs),
	"users":        resourceRows((*api.Client).Users),
	"applications": resourceRows((*api.Client).Applications),
}

func resourceRows[T any](res func(*api.Client) api.Resource[T]) exporter {
	return func(ctx context.Context, client *api.Client) ([]csvexport.Row, error) {
		list, err := res(client).List(ctx)
		if err != nil {
			return nil, err
		}
		return csvexport.Rows(list)
	}
}

func (cli *commandLine) export(ctx context.Context, client *api.Client, resource, path string) error {
	rows, err := exporters[resource](ctx, client)
	if err != nil {
		return errors.Wrapf(err, "listing %s", resource)
	}
	if len(rows) == 0 {
		fmt.Fprintf(cli.out, "no %s to export\n", resource)
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	if err := csvexport.Write(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "closing export file")
	}
	fmt.Fprintf(cli.out, "exported %d %s to %s\n", len(rows), resource, path)
	return nil
}
