package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docdyhr/wpclient"
)

func newGetCmd(a *app) *cobra.Command {
	var params []string
	var repeat int
	var noCache bool

	cmd := &cobra.Command{
		Use:   "get <endpoint>",
		Short: "Fetch an endpoint, e.g. posts or settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := paramOptions(params)
			if err != nil {
				return err
			}
			if noCache {
				opts = append(opts, wpclient.WithoutCache())
			}
			if repeat < 1 {
				repeat = 1
			}

			var resp *wpclient.Response
			for i := 0; i < repeat; i++ {
				resp, err = a.client.Get(cmd.Context(), args[0], opts...)
				if err != nil {
					return err
				}
			}
			return a.printResponse(resp)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "issue the request this many times")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	return cmd
}

func newWriteCmd(a *app, method, use, short string) *cobra.Command {
	var params []string
	var data string
	var dataFile string

	cmd := &cobra.Command{
		Use:   use + " <endpoint>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := paramOptions(params)
			if err != nil {
				return err
			}
			body, err := readBody(data, dataFile)
			if err != nil {
				return err
			}

			resp, err := a.client.Request(cmd.Context(), method, args[0], body, opts...)
			if err != nil {
				return err
			}
			return a.printResponse(resp)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "read the JSON request body from a file")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var params []string
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <endpoint>",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := paramOptions(params)
			if err != nil {
				return err
			}
			if force {
				opts = append(opts, wpclient.WithQuery("force", "true"))
			}

			resp, err := a.client.Delete(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			return a.printResponse(resp)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the trash and delete permanently")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "upload <endpoint> <file>",
		Short: "Upload a file as multipart/form-data, e.g. to media",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formFields, err := parsePairs(fields)
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			resp, err := a.client.Upload(cmd.Context(), args[0], args[1], f, formFields)
			if err != nil {
				return err
			}
			return a.printResponse(resp)
		},
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "form field as key=value (repeatable)")
	return cmd
}

func (a *app) printResponse(resp *wpclient.Response) error {
	if resp == nil {
		return nil
	}
	if resp.IsJSON && len(resp.Body) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Body, "", "  "); err == nil {
			_, err = fmt.Fprintln(a.out, buf.String())
			return err
		}
	}
	_, err := fmt.Fprintln(a.out, resp.Text())
	return err
}

func paramOptions(params []string) ([]wpclient.RequestOption, error) {
	pairs, err := parsePairs(params)
	if err != nil {
		return nil, err
	}
	opts := make([]wpclient.RequestOption, 0, len(pairs))
	for k, v := range pairs {
		opts = append(opts, wpclient.WithQuery(k, v))
	}
	return opts, nil
}

func parsePairs(raw []string) (map[string]string, error) {
	pairs := make(map[string]string, len(raw))
	for _, p := range raw {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q, expected key=value", p)
		}
		pairs[k] = v
	}
	return pairs, nil
}

func readBody(data, dataFile string) (interface{}, error) {
	if data != "" && dataFile != "" {
		return nil, fmt.Errorf("--data and --data-file are mutually exclusive")
	}
	if dataFile != "" {
		raw, err := os.ReadFile(dataFile)
		if err != nil {
			return nil, err
		}
		data = string(raw)
	}
	if data == "" {
		return nil, nil
	}
	if !json.Valid([]byte(data)) {
		return nil, fmt.Errorf("request body is not valid JSON")
	}
	return json.RawMessage(data), nil
}
