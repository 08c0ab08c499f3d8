package state

import "context"

// Follow applies every width received on widths until ctx is done or the
// channel is closed. The subscription is released on either exit path.
func (d *Dashboard) Follow(ctx context.Context, widths <-chan int, onChange func(Layout)) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-widths:
			if !ok {
				return
			}
			layout := d.Resize(w)
			if onChange != nil {
				onChange(layout)
			}
		}
	}
}
