package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"log"
	"os"
	"path/filepath"
)

var (
	dir  = flag.String("dir", "", "Directory where the session signing key will be stored")
	bits = flag.Int("bits", 2048, "Size of the RSA key")
)

func writePEM(filename string, block *pem.Block) {
	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		log.Fatalln(err)
	}
	if err = pem.Encode(file, block); err != nil {
		log.Fatalln(err)
	}
	if err = file.Close(); err != nil {
		log.Fatalln(err)
	}
}

func main() {
	flag.Parse()
	if *dir == "" {
		log.Fatal("no directory was given")
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, *bits)
	if err != nil {
		log.Fatalln(err)
	}

	writePEM(filepath.Join(*dir, "private.pem"), &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	publicKey, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		log.Fatalln(err)
	}
	writePEM(filepath.Join(*dir, "public.pem"), &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKey,
	})
}
