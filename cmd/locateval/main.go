// Command locateval evaluates the file-localization quality of tool-using
// agents against a ground-truth bug-fix corpus.
package main

func main() {
	Execute()
}
