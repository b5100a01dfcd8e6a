package siminput

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Manifest file names.
const (
	ManifestName       = "Ligand_concentrations"
	SortedManifestName = "Ligand_concentrations_sorted"
)

// WriteManifest writes one value per line in fixed six-decimal notation.
func WriteManifest(w io.Writer, values []int) error {
	bw := bufio.NewWriter(w)
	for _, v := range values {
		if _, err := fmt.Fprintf(bw, "%f\n", float64(v)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Manifests renders the sampled values as drawn and sorted ascending.
func Manifests(values []int) (plain, sorted []byte, err error) {
	var a, b bytes.Buffer
	if err := WriteManifest(&a, values); err != nil {
		return nil, nil, err
	}
	s := append([]int(nil), values...)
	sort.Ints(s)
	if err := WriteManifest(&b, s); err != nil {
		return nil, nil, err
	}
	return a.Bytes(), b.Bytes(), nil
}
