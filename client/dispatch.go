package client

import (
	"github.com/haxii/fastmux/multi"
)

// drain dispatches every completion the engine has queued
func (c *Client) drain() {
	for {
		msg, _ := c.engine.InfoRead()
		if msg == nil {
			return
		}

		i, ok := c.pool.Find(msg.Handle)
		if !ok {
			c.logger.Errorf(errUnmatched, "completion with result %d dropped", msg.Result)
			continue
		}
		if err := c.engine.Remove(msg.Handle); err != nil {
			c.logger.Errorf(err, "cannot remove finished session %s", msg.Handle.ID())
		}

		slot := c.pool.Slot(i)
		slot.Result = msg.Result
		if t, ok := slot.Owner.(*Transfer); ok {
			c.finish(t, msg)
		}
		c.pool.Release(i)
	}
}

// finish copies the outcome of a session into the response of t
func (c *Client) finish(t *Transfer, msg *multi.Message) {
	h, resp := msg.Handle, t.resp
	resp.Result = msg.Result
	resp.Err = h.Err()
	resp.StatusCode = h.ResponseCode()
	resp.ConnectCode = h.ConnectCode()
	resp.ContentType = h.ContentType()

	if resp.CaptureHeaders {
		if h.NativeHeaders() {
			resp.Headers = append(resp.Headers[:0], h.Headers()...)
		} else if t.collector != nil {
			resp.Headers = append(resp.Headers[:0], t.collector.Values()...)
		}
	}

	if t.bw != nil {
		if err := c.bufioPool.ReleaseWriter(t.bw); err != nil && resp.Result == multi.OK {
			resp.Result = multi.WriteError
			resp.Err = err
		}
		t.bw = nil
	}
	t.finished = true

	if resp.Result != multi.OK {
		c.logger.Debugf("request %s %s failed: %s", t.req.Method, t.req.URL, resp.Result)
	}
}
