package docreader

// relabel reimplements CoNLLDocumentReaderAndWriter.java's
// entitySubclassify: tags are "PREFIX-BASE" (e.g. "B-PERS") or a bare
// tag like "O"; style selects which prefix convention the result uses.
func relabel(tags []string, style string) []string {
	n := len(tags)
	out := make([]string, n)

	base := func(tag string) (prefix byte, rest string, tagged bool) {
		if len(tag) > 1 && tag[1] == '-' {
			return tag[0], tag[2:], true
		}
		return 0, tag, false
	}

	for i, tag := range tags {
		prefix, b, tagged := base(tag)
		if !tagged {
			out[i] = tag
			continue
		}

		var pPrefix, nPrefix byte
		var pBase, nBase string
		if i > 0 {
			pPrefix, pBase, _ = base(tags[i-1])
		} else {
			pBase = "O"
		}
		if i < n-1 {
			nPrefix, nBase, _ = base(tags[i+1])
		} else {
			nBase = "O"
		}

		isStartAdjacentSame := b == pBase && (prefix == 'B' || prefix == 'S' || pPrefix == 'E' || pPrefix == 'S')
		isEndAdjacentSame := b == nBase && (prefix == 'E' || prefix == 'S' || nPrefix == 'B' || pPrefix == 'S')
		isFirst := b != pBase || prefix == 'B'
		isLast := b != nBase || nPrefix == 'B'

		switch style {
		case "iob1":
			if isStartAdjacentSame {
				out[i] = "B-" + b
			} else {
				out[i] = "I-" + b
			}
		case "iob2":
			if isFirst {
				out[i] = "B-" + b
			} else {
				out[i] = "I-" + b
			}
		case "ioe1":
			if isEndAdjacentSame {
				out[i] = "E-" + b
			} else {
				out[i] = "I-" + b
			}
		case "ioe2":
			if isLast {
				out[i] = "E-" + b
			} else {
				out[i] = "I-" + b
			}
		case "sbieo":
			switch {
			case isFirst && isLast:
				out[i] = "S-" + b
			case !isFirst && isLast:
				out[i] = "E-" + b
			case isFirst && !isLast:
				out[i] = "B-" + b
			default:
				out[i] = "I-" + b
			}
		default: // "io"
			out[i] = "I-" + b
		}
	}
	return out
}

// ToIOB2 relabels tags so every entity's first token is marked "B-"
// and every subsequent token of the same entity is "I-" — always
// marking entity starts, regardless of adjacency to a same-type
// neighbor.
func ToIOB2(tags []string) []string { return relabel(tags, "iob2") }

// ToIOE relabels tags so every entity's last token is marked "E-" and
// every earlier token of the same entity is "I-" (the IOE2 variant,
// the end-marking mirror of ToIOB2 — chosen over IOE1 for the same
// reason IOB2, not IOB1, is the other named helper: both always mark
// the boundary regardless of adjacency).
func ToIOE(tags []string) []string { return relabel(tags, "ioe2") }

// ToIOB1 relabels tags to the classic CoNLL convention: "I-" throughout
// an entity, except "B-" when two same-type entities are directly
// adjacent and the boundary would otherwise be ambiguous.
func ToIOB1(tags []string) []string { return relabel(tags, "iob1") }
