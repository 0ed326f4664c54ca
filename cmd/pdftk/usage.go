package main

import "fmt"

func header() string {
	return fmt.Sprintf("\npdftk-ext %s a Handy Tool for Manipulating PDF Documents\n"+
		"This is free software; see the source code for copying conditions. There is\n"+
		"NO warranty, not even for MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.\n", version)
}

const synopsis = `SYNOPSIS
       pdftk <input PDF files | - | PROMPT>
	    [ input_pw <input PDF owner passwords | PROMPT> ]
	    [ <operation> <operation arguments> ]
	    [ output <output filename | - | PROMPT> ]
	    [ encrypt_40bit | encrypt_128bit ]
	    [ allow <permissions> ]
	    [ owner_pw <owner password | PROMPT> ]
	    [ user_pw <user password | PROMPT> ]
	    [ flatten ] [ compress | uncompress ]
	    [ keep_first_id | keep_final_id ] [ drop_xfa ]
	    [ verbose ] [ dont_ask | do_ask ]
       Where:
	    <operation> may be empty, or:
	    [ cat | shuffle | burst |
	      generate_fdf | fill_form |
	      background | multibackground |
	      stamp | multistamp | stamp_detailed |
	      dump_data | dump_data_utf8 |
	      dump_data_fields | dump_data_fields_utf8 |
	      update_info | update_info_utf8 |
	      attach_files | unpack_files ]

       For Complete Help: pdftk --help
`

const description = `DESCRIPTION
       Merge, split, rotate, decrypt and encrypt PDF documents, fill and
       flatten forms, watermark pages and report on document metadata.

OPTIONS
       <input PDF files | - | PROMPT>
	      A list of the input PDF files. Give "-" to read a single PDF
	      from standard input, or PROMPT to be asked for a filename.
	      Inputs may be given handles, a single upper-case letter:

		     <input PDF handle>=<input PDF filename>

	      for use in page ranges and with input_pw.

       [input_pw <input PDF owner passwords | PROMPT>]
	      Input PDF owner passwords, in input order or by handle:

		     <input PDF handle>=<input PDF owner password>

       [<operation> <operation arguments>]
	      cat [<page ranges>]
		     Assembles pages from the inputs into a new PDF. A page
		     range is [<handle>][<begin>[-<end>[<qualifier>]]][<rotation>]
		     where begin and end are page numbers or "end", the
		     qualifier is even or odd and the rotation is N, E, S or W
		     to set an orientation, or L, R or D to turn the page.
		     Ranges may run backwards.

	      shuffle [<page ranges>]
		     Like cat, but takes one page from each range in turn.

	      burst  Splits a single input into one file per page, named by
		     the output printf pattern (default pg_%04d.pdf), and
		     writes a report to doc_data.txt.

	      generate_fdf
		     Writes an FDF holding the form fields of the input.

	      fill_form <FDF data filename | XFDF data filename | - | PROMPT>
		     Fills the form of the input with FDF or XFDF data.

	      background <background PDF filename | - | PROMPT>
		     Places page one of the background PDF behind every page.

	      multibackground <background PDF filename | - | PROMPT>
		     Like background, matching background pages to input pages.

	      stamp <stamp PDF filename | - | PROMPT>
		     Places page one of the stamp PDF over every page.

	      multistamp <stamp PDF filename | - | PROMPT>
		     Like stamp, matching stamp pages to input pages.

	      stamp_detailed <FDF or XFDF filename | - | PROMPT>
		     Draws base64 images into the same-named form fields.

	      dump_data, dump_data_utf8
		     Reports metadata, bookmarks, page media and page labels.

	      dump_data_fields, dump_data_fields_utf8
		     Reports form fields.

	      update_info <info data filename | - | PROMPT>
	      update_info_utf8 <info data filename | - | PROMPT>
		     Changes the Info dictionary from dump_data style data.

	      attach_files <attachment filenames | PROMPT> [to_page <page number | end | PROMPT>]
		     Attaches files to the document, or to a page.

	      unpack_files
		     Copies the attachments of the input into the output
		     directory.

       [output <output filename | - | PROMPT>]
	      The output PDF filename; "-" writes to standard output.

       [encrypt_40bit | encrypt_128bit]
	      Output encryption strength; 128 bit when a password is given
	      without a strength.

       [allow <permissions>]
	      Printing, DegradedPrinting, ModifyContents, Assembly,
	      CopyContents, ScreenReaders, ModifyAnnotations, FillIn and
	      AllFeatures.

       [owner_pw <owner password | PROMPT>]
       [user_pw <user password | PROMPT>]
	      Output passwords. They must differ.

       [compress | uncompress]
	      Compresses or uncompresses page streams of the output.

       [flatten]
	      Merges form fields into the page content.

       [keep_first_id | keep_final_id]
	      Copies the document ID of the first or final input.

       [drop_xfa]
	      Removes XFA form data.

       [verbose]
	      Reports on progress to standard output.

       [dont_ask | do_ask]
	      Whether to ask before overwriting files and on other
	      interactive decisions.

ENVIRONMENT
       PDFTK_DEBUG                  structured debug logging on stderr
       PDFTK_ASK                    ask by default, as with do_ask
       PDFTK_MAX_PASSWORD_ATTEMPTS  limit on password retries
`
