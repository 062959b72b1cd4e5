package main

import "github.com/BenjaminRains/dbt-dental-clinic-sub001/cmd/dentsync/cmd"

func main() {
	cmd.Execute()
}
