// Package course plots a submarine's position from a list of steering
// commands ("forward 5", "down 3", "up 2").
//
// Plot treats down/up as direct depth changes. PlotWithAim treats them as
// aim changes, and each forward move then dives by aim × distance. Both fold
// an immutable Position value over the command list.
package course

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCommand is returned for a line that is not "<direction> <amount>".
var ErrInvalidCommand = errors.New("invalid command")

// Direction is one of the three steering verbs.
type Direction string

const (
	Forward Direction = "forward"
	Down    Direction = "down"
	Up      Direction = "up"
)

// Command is one parsed steering instruction.
type Command struct {
	Direction Direction `json:"direction"`
	Amount    int64     `json:"amount"`
}

// Position is the accumulated state after applying some commands.
type Position struct {
	Horizontal int64 `json:"horizontal"`
	Depth      int64 `json:"depth"`
	Aim        int64 `json:"aim"`
}

// Product is horizontal × depth.
func (p Position) Product() int64 { return p.Horizontal * p.Depth }

// Parse reads one command per line. Blank lines are skipped.
func Parse(text string) ([]Command, error) {
	var cmds []Command
	for n, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("course: line %d: want \"<direction> <amount>\": %w", n+1, ErrInvalidCommand)
		}
		dir := Direction(fields[0])
		switch dir {
		case Forward, Down, Up:
		default:
			return nil, fmt.Errorf("course: line %d: unknown direction %q: %w", n+1, fields[0], ErrInvalidCommand)
		}
		amount, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || amount < 0 {
			return nil, fmt.Errorf("course: line %d: bad amount %q: %w", n+1, fields[1], ErrInvalidCommand)
		}
		cmds = append(cmds, Command{Direction: dir, Amount: amount})
	}
	return cmds, nil
}

// Plot applies cmds with down/up moving depth directly. Aim stays zero.
func Plot(cmds []Command) Position {
	return fold(cmds, Position{}, func(p Position, c Command) Position {
		switch c.Direction {
		case Forward:
			p.Horizontal += c.Amount
		case Down:
			p.Depth += c.Amount
		case Up:
			p.Depth -= c.Amount
		}
		return p
	})
}

// PlotWithAim applies cmds with down/up adjusting aim; forward X advances
// horizontally by X and dives by aim × X.
func PlotWithAim(cmds []Command) Position {
	return fold(cmds, Position{}, func(p Position, c Command) Position {
		switch c.Direction {
		case Forward:
			p.Horizontal += c.Amount
			p.Depth += p.Aim * c.Amount
		case Down:
			p.Aim += c.Amount
		case Up:
			p.Aim -= c.Amount
		}
		return p
	})
}

// fold threads acc through step for each command. Position is passed by
// value so step cannot alias the caller's accumulator.
func fold(cmds []Command, acc Position, step func(Position, Command) Position) Position {
	for _, c := range cmds {
		acc = step(acc, c)
	}
	return acc
}
