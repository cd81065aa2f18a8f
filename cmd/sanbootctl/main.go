// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package main

import (
	"fmt"

	"github.com/nettboot/sanboot13/cmd/sanbootctl/cmd"
	"github.com/nettboot/sanboot13/internal/env"
)

func main() {
	printBanner()

	_ = cmd.Execute()
}

func printBanner() {
	fmt.Println(" ___  ___ _ __   | |__   ___   ___ | |_ / |/ _|")
	fmt.Println("/ __|/ _ \\ '_ \\  | '_ \\ / _ \\ / _ \\| __|| |\\ \\ ")
	fmt.Println("\\__ \\  __/ | | | | |_) | (_) | (_) | |_ | |_) )")
	fmt.Println("|___/\\___|_| |_| |_.__/ \\___/ \\___/ \\__||_|__/ ")
	fmt.Println()
	fmt.Println("INT 13h SAN boot emulation core")
	fmt.Println()
	fmt.Printf("Version:    %s\n", env.Version)
	fmt.Printf("Commit:     %s\n", env.CommitHash)
	fmt.Printf("Build Time: %s\n", env.BuildTime)
	fmt.Println()
}
