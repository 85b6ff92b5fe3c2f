package delta

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/tridge-sync/tsync/pkg/block"
)

// magic identifies a delta file.
var magic = [8]byte{'R', 'S', '-', 'S', 'Y', 'N', 'C', 'D'}

// Version is the delta file format version written by this package. It
// carries an explicit length field on BACKREF records; the original
// table's implicit-length BACKREF is ambiguous without also shipping the
// referenced file's own block list, so this is a breaking bump from 0x0001.
const Version uint16 = 2

// File is one file's instruction tape as it appears in a delta file: its
// name (empty in single-file mode) and its instructions, including the
// terminating OpEndFile.
type File struct {
	Name         string
	Instructions []Instruction
}

// WriteFile serializes a single-file-mode delta: n_files is written as 0
// and the filename field is empty, per §6.2's single-file convention.
func WriteFile(w io.Writer, blockSize uint32, instructions []Instruction) error {
	return Write(w, blockSize, nil, instructions)
}

// Write serializes a delta file. If files is non-empty, directory mode is
// used (n_files = len(files), each with its own name and tape); the
// singleInstructions parameter is ignored in that case. In single-file
// mode (files is nil), singleInstructions is written under n_files = 0.
func Write(w io.Writer, blockSize uint32, files []File, singleInstructions []Instruction) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(magic[:]); err != nil {
		return errors.Wrap(err, "unable to write magic")
	}
	if err := binary.Write(bw, binary.BigEndian, Version); err != nil {
		return errors.Wrap(err, "unable to write version")
	}
	if err := binary.Write(bw, binary.BigEndian, blockSize); err != nil {
		return errors.Wrap(err, "unable to write blocksize")
	}

	if len(files) == 0 {
		if err := binary.Write(bw, binary.BigEndian, uint16(0)); err != nil {
			return errors.Wrap(err, "unable to write file count")
		}
		if err := writeTape(bw, "", singleInstructions); err != nil {
			return err
		}
	} else {
		if err := binary.Write(bw, binary.BigEndian, uint16(len(files))); err != nil {
			return errors.Wrap(err, "unable to write file count")
		}
		for _, f := range files {
			if err := writeTape(bw, f.Name, f.Instructions); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

func writeTape(w io.Writer, name string, instructions []Instruction) error {
	nameBytes := []byte(name)
	if err := binary.Write(w, binary.BigEndian, uint16(len(nameBytes))); err != nil {
		return errors.Wrap(err, "unable to write filename length")
	}
	if _, err := w.Write(nameBytes); err != nil {
		return errors.Wrap(err, "unable to write filename")
	}

	var totalSize int64
	for _, instr := range instructions {
		if instr.Op == OpEndFile {
			totalSize = instr.TotalSize
			continue
		}
		if err := writeInstruction(w, instr); err != nil {
			return errors.Wrap(err, "unable to write instruction")
		}
	}
	if err := binary.Write(w, binary.BigEndian, uint8(OpEndFile)); err != nil {
		return errors.Wrap(err, "unable to write endfile tag")
	}
	return binary.Write(w, binary.BigEndian, totalSize)
}

func writeInstruction(w io.Writer, instr Instruction) error {
	switch instr.Op {
	case OpLiteral:
		if len(instr.Literal) == 0 || len(instr.Literal) > maxLiteralLength {
			return errors.Errorf("literal instruction length out of range: %d", len(instr.Literal))
		}
		if err := binary.Write(w, binary.BigEndian, uint8(OpLiteral)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint16(len(instr.Literal)-1)); err != nil {
			return err
		}
		_, err := w.Write(instr.Literal)
		return err
	case OpKnown:
		if err := binary.Write(w, binary.BigEndian, uint8(OpKnown)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, instr.Weak); err != nil {
			return err
		}
		_, err := w.Write(instr.Strong[:])
		return err
	case OpBackref:
		if err := binary.Write(w, binary.BigEndian, uint8(OpBackref)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, instr.SrcFileID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, instr.Offset); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, uint64(instr.Length))
	default:
		return errors.Errorf("unexpected instruction op: %d", instr.Op)
	}
}

// Read deserializes a delta file. For single-file mode (n_files == 0) the
// returned slice holds exactly one File with an empty Name.
func Read(r io.Reader) (blockSize uint32, files []File, err error) {
	br := bufio.NewReader(r)

	var gotMagic [8]byte
	if _, err = io.ReadFull(br, gotMagic[:]); err != nil {
		return 0, nil, errors.Wrap(err, "unable to read magic")
	}
	if gotMagic != magic {
		return 0, nil, errors.Errorf("bad delta magic: %q", gotMagic)
	}

	var version uint16
	if err = binary.Read(br, binary.BigEndian, &version); err != nil {
		return 0, nil, errors.Wrap(err, "unable to read version")
	}
	if version != Version {
		return 0, nil, errors.Errorf("unsupported delta version: %d", version)
	}

	if err = binary.Read(br, binary.BigEndian, &blockSize); err != nil {
		return 0, nil, errors.Wrap(err, "unable to read blocksize")
	}

	var nFiles uint16
	if err = binary.Read(br, binary.BigEndian, &nFiles); err != nil {
		return 0, nil, errors.Wrap(err, "unable to read file count")
	}

	count := int(nFiles)
	if nFiles == 0 {
		count = 1
	}
	files = make([]File, count)
	for i := range files {
		f, readErr := readTape(br)
		if readErr != nil {
			return 0, nil, errors.Wrap(readErr, "unable to read file tape")
		}
		files[i] = f
	}

	return blockSize, files, nil
}

func readTape(r io.Reader) (File, error) {
	var nameLen uint16
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return File{}, err
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return File{}, err
	}

	var instructions []Instruction
	for {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return File{}, err
		}
		if Op(tag) == OpEndFile {
			var totalSize int64
			if err := binary.Read(r, binary.BigEndian, &totalSize); err != nil {
				return File{}, err
			}
			instructions = append(instructions, Instruction{Op: OpEndFile, TotalSize: totalSize})
			break
		}

		instr, err := readInstruction(r, Op(tag))
		if err != nil {
			return File{}, err
		}
		instructions = append(instructions, instr)
	}

	return File{Name: string(nameBytes), Instructions: instructions}, nil
}

func readInstruction(r io.Reader, op Op) (Instruction, error) {
	switch op {
	case OpLiteral:
		var lengthMinusOne uint16
		if err := binary.Read(r, binary.BigEndian, &lengthMinusOne); err != nil {
			return Instruction{}, err
		}
		literal := make([]byte, int(lengthMinusOne)+1)
		if _, err := io.ReadFull(r, literal); err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpLiteral, Literal: literal}, nil
	case OpKnown:
		var weak uint32
		if err := binary.Read(r, binary.BigEndian, &weak); err != nil {
			return Instruction{}, err
		}
		var strong block.Strong
		if _, err := io.ReadFull(r, strong[:]); err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpKnown, Weak: weak, Strong: strong}, nil
	case OpBackref:
		var srcFileID uint16
		if err := binary.Read(r, binary.BigEndian, &srcFileID); err != nil {
			return Instruction{}, err
		}
		var offset int64
		if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
			return Instruction{}, err
		}
		var length uint64
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpBackref, SrcFileID: srcFileID, Offset: offset, Length: uint32(length)}, nil
	default:
		return Instruction{}, errors.Errorf("unrecognized instruction tag: %d", op)
	}
}
