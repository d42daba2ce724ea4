// Command mkoperator hashes an operator secret for the OPERATORS
// configuration variable.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/veracore/veracore/internal/service/password"
)

func main() {
	id := flag.String("id", "", "operator id")
	secret := flag.String("secret", "", "operator secret to hash")
	caps := flag.String("caps", "", "comma-separated capabilities")
	flag.Parse()

	if *id == "" || *secret == "" {
		log.Fatal("usage: mkoperator -id <id> -secret <secret> [-caps cap1,cap2]")
	}

	hash, err := password.NewBcryptService(0).Hash(*secret)
	if err != nil {
		log.Fatalf("failed to hash secret: %v", err)
	}

	entry := strings.Join([]string{*id, hash, *caps}, "|")
	fmt.Println(entry)
}
