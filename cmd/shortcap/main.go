package main

import "github.com/forPelevin/shortcap/internal/cli"

func main() { cli.Main() }
