package main

import "capacityreport/internal/app"

func main() {
	app.Main()
}
