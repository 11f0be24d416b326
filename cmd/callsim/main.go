// Callsim plays one side of a call against a running callbridge server.
//
// As a customer it registers and places a call; as an agent it registers and
// waits for calls, answering them when -auto-accept is set. Every event
// received is printed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Wyydra/callbridge/internal/client"
	"github.com/Wyydra/callbridge/internal/core/domain"
	"github.com/Wyydra/callbridge/internal/logging"
	"github.com/pterm/pterm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	url := flag.String("url", "ws://localhost:3001/socket", "Signaling WebSocket URL")
	role := flag.String("role", "customer", "Role: agent or customer")
	user := flag.String("user", "", "User id (default <role>-<random>)")
	name := flag.String("name", "Callsim", "Customer display name")
	meeting := flag.String("meeting", "demo-meeting", "Meeting id for the call")
	autoAccept := flag.Bool("auto-accept", false, "Accept incoming calls (agent only)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	logging.Setup(os.Stderr, logging.FormatConsole, level)

	r, err := domain.ParseRole(*role)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	userID := domain.UserID(*user)
	if userID == "" {
		userID = domain.UserID(domain.NewExternalUserID(r))
	}

	c := client.New(client.DefaultConfig(*url))
	subscribe(c, r, userID, *autoAccept)

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + *url)
	if err := c.Connect(ctx); err != nil {
		spinner.Fail(err.Error())
		os.Exit(1)
	}
	spinner.Success("Connected")
	defer c.Close()

	if err := c.Register(r, userID); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	pterm.Info.Printfln("Registered as %s %s", r, userID)

	if r == domain.RoleCustomer {
		id, err := c.RequestCall(*name, domain.MeetingID(*meeting))
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		pterm.Info.Printfln("Requested call %s in meeting %s", id, *meeting)
	}

	if err := c.Run(ctx); err != nil && err != context.Canceled {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	pterm.Info.Println("Bye")
}

func subscribe(c *client.Client, role domain.Role, userID domain.UserID, autoAccept bool) {
	c.On(domain.EventCallRequest, func(ev domain.Event) {
		req := ev.(domain.CallRequest)
		printEvent(ev, pterm.LightCyan(fmt.Sprintf("%s is calling (call %s, meeting %s)", req.CustomerName, req.ID, req.MeetingID)))
		if role != domain.RoleAgent || !autoAccept {
			return
		}
		if err := c.RespondCall(req.ID, true, userID, req.MeetingID); err != nil {
			pterm.Error.Println(err)
			return
		}
		if err := c.AgentJoined(userID, req.MeetingID); err != nil {
			pterm.Error.Println(err)
		}
	})

	c.On(domain.EventCallResponse, func(ev domain.Event) {
		resp := ev.(domain.CallResponse)
		if resp.Accepted {
			printEvent(ev, pterm.Green(fmt.Sprintf("Agent %s accepted call %s", resp.AgentID, resp.ID)))
			if err := c.CustomerJoined(userID, resp.MeetingID); err != nil {
				pterm.Error.Println(err)
			}
			return
		}
		printEvent(ev, pterm.Yellow(fmt.Sprintf("Agent %s declined call %s", resp.AgentID, resp.ID)))
	})

	c.On(domain.EventCallEnded, func(ev domain.Event) {
		e := ev.(domain.CallEnded)
		msg := fmt.Sprintf("Call %s ended", e.CallID)
		if e.Reason != "" {
			msg += " (" + string(e.Reason) + ")"
		}
		printEvent(ev, pterm.Red(msg))
	})

	c.On(domain.EventAgentJoined, func(ev domain.Event) {
		e := ev.(domain.AgentJoined)
		printEvent(ev, fmt.Sprintf("Agent %s joined meeting %s", e.AgentID, e.MeetingID))
	})

	c.On(domain.EventCustomerJoined, func(ev domain.Event) {
		e := ev.(domain.CustomerJoined)
		printEvent(ev, fmt.Sprintf("Customer %s joined meeting %s", e.CustomerID, e.MeetingID))
	})
}

func printEvent(ev domain.Event, msg string) {
	pterm.Printfln("%s %s", pterm.Bold.Sprint(string(ev.Type())), msg)
}
