package main

import "github.com/Viktor-Kode/bloghub/server"

func main() {
	server.RunServer()
}
