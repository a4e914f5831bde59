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

// Command petgram runs the Petgram API server.
//
// Usage:
//
//	petgram [serve]       start the HTTP server (default)
//	petgram categories    fetch and print the categories from PETGRAM_API_URL
//
// Settings are read from the environment and an optional .env file; see package config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/botobag/petgram/config"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-env file] [serve|categories]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	envFile := flag.String("env", ".env", "file to load environment variables from")
	flag.Usage = usage
	flag.Parse()

	log.SetPrefix("petgram: ")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := "serve"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	switch command {
	case "serve":
		err = serve(ctx, cfg)
	case "categories":
		err = printCategories(ctx, cfg, os.Stdout)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}
