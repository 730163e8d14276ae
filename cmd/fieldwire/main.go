/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/fieldwire/cmd/fieldwire/cmd"

func main() {
	cmd.Execute()
}
