/**
 * Copyright (c) 2019, The Artemis Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/botobag/petgram/client"
	"github.com/botobag/petgram/config"
)

// printCategories loads the categories through the frontend hook and prints one per line.
func printCategories(ctx context.Context, cfg config.Config, w io.Writer) error {
	hook := client.NewCategoriesHook(cfg.APIURL)
	state := hook.Mount(ctx)
	if state.Err != nil {
		return state.Err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMOJI\tNAME\tPATH")
	for _, category := range state.Data {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", category.ID, category.Emoji, category.Name, category.Path)
	}
	return tw.Flush()
}
